package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

const (
	validateTokenEndpoint   = "/1/validate-token"
	submitListensEndpoint   = "/1/submit-listens"
	createdForEndpoint      = "/1/user/%s/playlists/createdfor"
	playlistDetailEndpoint  = "/1/playlist/%s"
	defaultListenBrainzHost = "api.listenbrainz.org"

	listenTypeSingle     = "single"
	listenTypePlayingNow = "playing_now"
)

// ListenBrainzOpts configures [NewListenBrainzService].
type ListenBrainzOpts struct {
	Token             string
	URL               string // host such as "api.listenbrainz.org", or a full base URL
	Proxy             string
	RequestsPerSecond float64 // zero disables pacing
	Timeout           time.Duration
	Version           string
	Logger            *log.Logger
	Transport         http.RoundTripper
}

// ListenBrainzService is the remote client for the ListenBrainz API.
type ListenBrainzService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	version    string

	mu       sync.RWMutex
	valid    bool
	identity string
}

// NewListenBrainzService builds the client and validates its token.
//
// It fails with [shared.ErrInvalidToken] when the initial validation does not succeed.
func NewListenBrainzService(ctx context.Context, opts ListenBrainzOpts) (*ListenBrainzService, error) {
	s, err := newListenBrainzService(opts)
	if err != nil {
		return nil, err
	}

	if valid, _ := s.ValidateToken(ctx); !valid {
		return nil, shared.ErrInvalidToken
	}
	return s, nil
}

func newListenBrainzService(opts ListenBrainzOpts) (*ListenBrainzService, error) {
	if opts.Token == "" {
		return nil, shared.ErrMissingCredentials
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client, err := NewHTTPClient(ClientOpts{
		Token:     opts.Token,
		Proxy:     opts.Proxy,
		UserAgent: UserAgent(opts.Version),
		Timeout:   opts.Timeout,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, err
	}

	version := opts.Version
	if version == "" {
		version = shared.Version
	}

	return &ListenBrainzService{
		baseURL:    baseURL(opts.URL, defaultListenBrainzHost),
		httpClient: client,
		limiter:    newLimiter(opts.RequestsPerSecond),
		logger:     shared.WithLogger(opts.Logger, "service", "listenbrainz"),
		version:    version,
	}, nil
}

// baseURL accepts either a bare host or a URL with a scheme.
func baseURL(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Identity returns the user name from the last successful validation.
func (s *ListenBrainzService) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Valid reports whether the token is currently considered valid.
func (s *ListenBrainzService) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid
}

func (s *ListenBrainzService) setValidation(valid bool, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = valid
	s.identity = identity
}

func (s *ListenBrainzService) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = false
}

// ValidateToken checks the token with the remote and records the account identity.
// Any failure leaves the client unvalidated.
func (s *ListenBrainzService) ValidateToken(ctx context.Context) (bool, string) {
	var resp struct {
		Valid    bool   `json:"valid"`
		UserName string `json:"user_name"`
		Message  string `json:"message"`
	}

	if err := s.doRequest(ctx, http.MethodGet, validateTokenEndpoint, nil, &resp); err != nil {
		s.logFailure("validate token", err)
		s.setValidation(false, "")
		return false, ""
	}

	if !resp.Valid {
		s.logger.Warn("Token is not valid", "message", resp.Message)
		s.setValidation(false, "")
		return false, ""
	}

	s.setValidation(true, resp.UserName)
	s.logger.Debug("Token validated", "user", resp.UserName)
	return true, resp.UserName
}

type additionalInfo struct {
	MediaPlayer             string `json:"media_player"`
	SubmissionClient        string `json:"submission_client"`
	SubmissionClientVersion string `json:"submission_client_version"`
	TrackMBID               string `json:"track_mbid,omitempty"`
}

type trackMetadata struct {
	TrackName      string         `json:"track_name"`
	ArtistName     string         `json:"artist_name"`
	ReleaseName    string         `json:"release_name"`
	AdditionalInfo additionalInfo `json:"additional_info"`
}

type listenPayload struct {
	TrackMetadata trackMetadata `json:"track_metadata"`
	ListenedAt    *int64        `json:"listened_at,omitempty"`
}

type submitListensRequest struct {
	ListenType string          `json:"listen_type"`
	Payload    []listenPayload `json:"payload"`
}

// buildSubmission turns an event into the single-element submit-listens body.
func (s *ListenBrainzService) buildSubmission(ev models.ListenEvent) submitListensRequest {
	listen := listenPayload{
		TrackMetadata: trackMetadata{
			TrackName:   ev.TrackName,
			ArtistName:  ev.ArtistName,
			ReleaseName: ev.ReleaseName,
			AdditionalInfo: additionalInfo{
				MediaPlayer:             shared.AppName,
				SubmissionClient:        shared.AppName,
				SubmissionClientVersion: s.version,
				TrackMBID:               ev.MBID,
			},
		},
	}

	listenType := listenTypePlayingNow
	if !ev.NowPlaying {
		listenType = listenTypeSingle
		at := ev.ListenedAt
		listen.ListenedAt = &at
	}

	return submitListensRequest{ListenType: listenType, Payload: []listenPayload{listen}}
}

// SubmitListen submits a single listen or "now playing" event.
//
// Failures are logged and reported through the return value only.
func (s *ListenBrainzService) SubmitListen(ctx context.Context, ev models.ListenEvent) bool {
	if !ev.Valid() {
		s.logger.Debug("Won't submit listen for partially known track", "track", ev.TrackName, "artist", ev.ArtistName)
		return false
	}
	if !s.Valid() {
		s.logger.Warn("Skipping listen submission with unvalidated token", "track", ev.TrackName)
		return false
	}

	if err := s.doRequest(ctx, http.MethodPost, submitListensEndpoint, s.buildSubmission(ev), nil); err != nil {
		s.logFailure("submit listen", err)
		return false
	}

	s.logger.Debug("Listen submitted", "track", ev.TrackName, "now_playing", ev.NowPlaying)
	return true
}

type createdForResponse struct {
	Playlists []struct {
		Playlist struct {
			Identifier string `json:"identifier"`
		} `json:"playlist"`
	} `json:"playlists"`
}

// ListPlaylistIDsForUser lists the ids of recommendation playlists created for identity, in remote order.
//
// A failed listing is an error, never an empty list.
func (s *ListenBrainzService) ListPlaylistIDsForUser(ctx context.Context, identity string) ([]string, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: no user to list playlists for", shared.ErrMissingArgument)
	}
	if !s.Valid() {
		return nil, fmt.Errorf("%w: token not validated", shared.ErrUnauthorized)
	}

	var resp createdForResponse
	path := fmt.Sprintf(createdForEndpoint, url.PathEscape(identity))
	if err := s.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		s.logFailure("list playlists", err)
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	seen := make(map[string]bool, len(resp.Playlists))
	ids := make([]string, 0, len(resp.Playlists))
	for _, entry := range resp.Playlists {
		identifier := entry.Playlist.Identifier
		if identifier == "" {
			s.logger.Debug("Skipping playlist without identifier")
			continue
		}

		id, ok := PlaylistIDFromIdentifier(identifier)
		if !ok {
			s.logger.Warn("Failed to extract playlist id", "identifier", identifier)
			continue
		}

		if seen[id] {
			s.logger.Warn("Duplicated playlist", "identifier", identifier)
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return ids, nil
}

// trackIdentifiers accepts either a single identifier string or an array of them.
// Any other shape decodes to no identifiers so only that track is dropped.
type trackIdentifiers []string

func (t *trackIdentifiers) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*t = []string{one}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		*t = nil
		return nil
	}
	*t = many
	return nil
}

type playlistDetailResponse struct {
	Playlist struct {
		Title *string `json:"title"`
		Date  string  `json:"date"`
		Track []struct {
			Identifier trackIdentifiers `json:"identifier"`
		} `json:"track"`
	} `json:"playlist"`
}

// FetchPlaylistDetail fetches one playlist and normalizes it.
//
// It returns nil when the playlist has no title, an unparseable date, or no track with a recording MBID.
func (s *ListenBrainzService) FetchPlaylistDetail(ctx context.Context, playlistID string) *models.PlaylistData {
	if !s.Valid() {
		s.logger.Warn("Skipping playlist fetch with unvalidated token", "playlist", playlistID)
		return nil
	}

	var resp playlistDetailResponse
	path := fmt.Sprintf(playlistDetailEndpoint, url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		s.logFailure("fetch playlist", err)
		return nil
	}

	return s.normalizePlaylist(playlistID, resp)
}

func (s *ListenBrainzService) normalizePlaylist(playlistID string, resp playlistDetailResponse) *models.PlaylistData {
	dto := resp.Playlist
	if dto.Title == nil || strings.TrimSpace(*dto.Title) == "" {
		s.logger.Debug("Unable to read a name from playlist", "playlist", playlistID)
		return nil
	}

	created, ok := parseISODate(dto.Date)
	if !ok {
		s.logger.Warn("Failed to parse date for playlist", "playlist", playlistID, "date", dto.Date)
		return nil
	}

	mbids := make([]string, 0, len(dto.Track))
	for _, track := range dto.Track {
		for _, identifier := range track.Identifier {
			mbid, ok := RecordingMBIDFromIdentifier(identifier)
			if !ok {
				s.logger.Debug("Failed to identify MBID", "identifier", identifier)
				continue
			}
			mbids = append(mbids, mbid)
			break
		}
	}

	if len(mbids) == 0 {
		s.logger.Debug("No MBID found for tracks of playlist", "playlist", playlistID)
		return nil
	}

	return &models.PlaylistData{
		PlaylistID:   playlistID,
		Name:         *dto.Title,
		TrackMBIDs:   mbids,
		LastModified: created.Unix(),
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Raw performs an authenticated request against path and returns the response without classifying its status.
func (s *ListenBrainzService) Raw(ctx context.Context, method, path string, body []byte) (*APIResponse, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTransport, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w: %w", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// doRequest performs a paced request and decodes a 2xx JSON body into result.
func (s *ListenBrainzService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := s.Raw(ctx, method, endpoint, payload)
	if err != nil {
		return err
	}

	if err := checkStatus(resp.StatusCode, resp.Body); err != nil {
		if errors.Is(err, shared.ErrUnauthorized) {
			s.invalidate()
		}
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w: %w", shared.ErrParse, err)
		}
	}
	return nil
}

func (s *ListenBrainzService) logFailure(op string, err error) {
	switch {
	case errors.Is(err, shared.ErrBadRequest):
		s.logger.Warn("Bad request", "op", op, "err", err)
	case errors.Is(err, shared.ErrUnauthorized):
		s.logger.Warn("Unauthorized request", "op", op)
	case errors.Is(err, shared.ErrRateLimited):
		s.logger.Warn("Too many requests", "op", op)
	case errors.Is(err, shared.ErrUnexpectedStatus):
		s.logger.Warn("Unhandled status code", "op", op, "status", StatusCode(err))
	case errors.Is(err, shared.ErrParse):
		s.logger.Warn("Malformed response", "op", op, "err", err)
	default:
		s.logger.Error("Request failed", "op", op, "err", err)
	}
}
