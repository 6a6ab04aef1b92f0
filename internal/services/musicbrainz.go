package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/lbx/internal/shared"
)

const (
	defaultMusicBrainzURL = "https://musicbrainz.org/ws/2"
	defaultMusicBrainzRPS = 1.0
)

// MusicBrainzOpts configures [NewMusicBrainzService].
type MusicBrainzOpts struct {
	URL               string
	Contact           string // appended to the User-Agent as MusicBrainz asks
	RequestsPerSecond float64
	Timeout           time.Duration
	Version           string
	Logger            *log.Logger
	Transport         http.RoundTripper
}

// ArtistCredit is one credited artist on a recording.
type ArtistCredit struct {
	Name       string `json:"name"`
	Joinphrase string `json:"joinphrase,omitempty"`
	Artist     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

// Recording is a MusicBrainz recording with its artist credits.
type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int            `json:"length,omitempty"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
}

// ArtistCreditPhrase joins the credited names with their join phrases, e.g. "A feat. B".
func (r *Recording) ArtistCreditPhrase() string {
	var b strings.Builder
	for _, credit := range r.ArtistCredit {
		name := credit.Name
		if name == "" {
			name = credit.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(credit.Joinphrase)
	}
	return strings.TrimSpace(b.String())
}

// MusicBrainzService looks up recordings on MusicBrainz.
type MusicBrainzService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewMusicBrainzService creates a paced MusicBrainz client.
func NewMusicBrainzService(opts MusicBrainzOpts) (*MusicBrainzService, error) {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultMusicBrainzRPS
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	ua := UserAgent(opts.Version)
	if opts.Contact != "" {
		ua = fmt.Sprintf("%s ( %s )", ua, opts.Contact)
	}

	client, err := NewHTTPClient(ClientOpts{UserAgent: ua, Timeout: opts.Timeout, Transport: opts.Transport})
	if err != nil {
		return nil, err
	}

	base := opts.URL
	if base == "" {
		base = defaultMusicBrainzURL
	}

	return &MusicBrainzService{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:     shared.WithLogger(opts.Logger, "service", "musicbrainz"),
	}, nil
}

// RecordingByID fetches a recording with its artist credits.
func (m *MusicBrainzService) RecordingByID(ctx context.Context, mbid string) (*Recording, error) {
	if mbid == "" {
		return nil, fmt.Errorf("%w: empty recording id", shared.ErrInvalidInput)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTransport, err)
	}

	params := url.Values{}
	params.Set("inc", "artists")
	params.Set("fmt", "json")
	endpoint := fmt.Sprintf("%s/recording/%s?%s", m.baseURL, url.PathEscape(mbid), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w: %w", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: recording %s", shared.ErrTrackNotFound, mbid)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var recording Recording
	if err := json.Unmarshal(body, &recording); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w: %w", shared.ErrParse, err)
	}

	m.logger.Debug("Recording fetched", "mbid", mbid, "title", recording.Title)
	return &recording, nil
}
