// package services defines HTTP clients for ListenBrainz and MusicBrainz
package services

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/lbx/internal/shared"
	"golang.org/x/oauth2"
)

// tokenType makes [oauth2.Transport] send "Authorization: Token <token>".
const tokenType = "Token"

// ClientOpts configures [NewHTTPClient].
type ClientOpts struct {
	Token     string
	Proxy     string
	UserAgent string
	Timeout   time.Duration
	Transport http.RoundTripper // base transport; defaults to a clone of [http.DefaultTransport]
}

// UserAgent returns the User-Agent sent by lbx for the given version.
func UserAgent(version string) string {
	if version == "" {
		version = shared.Version
	}
	return fmt.Sprintf("%s/%s", shared.AppName, version)
}

// NewHTTPClient builds a connection-reusing client that honours the proxy, sets the user agent,
// and, when a token is given, attaches it to every request.
func NewHTTPClient(opts ClientOpts) (*http.Client, error) {
	base := opts.Transport
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Proxy != "" {
			proxyURL, err := url.Parse(opts.Proxy)
			if err != nil {
				return nil, fmt.Errorf("%w: proxy %q: %v", shared.ErrInvalidConfig, opts.Proxy, err)
			}
			t.Proxy = http.ProxyURL(proxyURL)
		}
		base = t
	}

	var rt http.RoundTripper = &userAgentTransport{base: base, userAgent: opts.UserAgent}
	if opts.Token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: tokenType}),
			Base:   rt,
		}
	}

	return &http.Client{Transport: rt, Timeout: opts.Timeout}, nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(r)
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       []byte
	kind       error
}

func (e *StatusError) Error() string {
	if e.kind == shared.ErrBadRequest && len(e.Body) > 0 {
		return fmt.Sprintf("%v (status %d): %s", e.kind, e.StatusCode, strings.TrimSpace(string(e.Body)))
	}
	return fmt.Sprintf("%v (status %d)", e.kind, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.kind }

// checkStatus classifies a response status. It returns nil for 2xx.
func checkStatus(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}

	var kind error
	switch code {
	case http.StatusBadRequest:
		kind = shared.ErrBadRequest
	case http.StatusUnauthorized:
		kind = shared.ErrUnauthorized
	case http.StatusTooManyRequests:
		kind = shared.ErrRateLimited
	default:
		kind = shared.ErrUnexpectedStatus
	}
	return &StatusError{StatusCode: code, Body: body, kind: kind}
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a [StatusError].
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
