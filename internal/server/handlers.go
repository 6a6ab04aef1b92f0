package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
)

// Agent is the worker behind the HTTP surface; satisfied by [tasks.Agent].
type Agent interface {
	Sync(ctx context.Context, progress chan<- tasks.ProgressUpdate, source string) (*tasks.ImportResult, error)
	PlaybackStarted(ctx context.Context, pb models.Playback) bool
	PlaybackEnded(ctx context.Context, pb models.Playback, position int) bool
	NextSync() time.Time
}

// RunHistory reads recorded sync runs.
type RunHistory interface {
	Latest(ctx context.Context) (*models.SyncRun, error)
}

// TrackCounter reports the size of the library index.
type TrackCounter interface {
	Count(ctx context.Context) (int, error)
}

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// PlaybackRequest is the body of both playback endpoints. Position is only read on "ended".
type PlaybackRequest struct {
	models.Playback
	Position int `json:"position"`
}

type playbackResponse struct {
	Submitted bool `json:"submitted"`
}

// PlaybackHandler receives player notifications and forwards them as listens.
type PlaybackHandler struct {
	agent  Agent
	logger *log.Logger
}

func NewPlaybackHandler(agent Agent, logger *log.Logger) *PlaybackHandler {
	return &PlaybackHandler{agent: agent, logger: logger}
}

func (h *PlaybackHandler) Routes() []string {
	return []string{"POST /playback/started", "POST /playback/ended"}
}

func (h *PlaybackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.agent == nil {
		writeError(w, http.StatusServiceUnavailable, shared.ErrServiceUnavailable.Error())
		return
	}

	var req PlaybackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid playback body: "+err.Error())
		return
	}
	if req.Name == "" || len(req.Artists) == 0 {
		writeError(w, http.StatusBadRequest, "name and artists are required")
		return
	}
	if req.Duration < 0 || req.Position < 0 {
		writeError(w, http.StatusBadRequest, "duration and position must not be negative")
		return
	}

	var submitted bool
	switch r.URL.Path {
	case "/playback/started":
		submitted = h.agent.PlaybackStarted(r.Context(), req.Playback)
	case "/playback/ended":
		submitted = h.agent.PlaybackEnded(r.Context(), req.Playback, req.Position)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	h.logger.Debug("playback notification", "path", r.URL.Path, "track", req.Name, "submitted", submitted)
	writeJSON(w, http.StatusOK, playbackResponse{Submitted: submitted})
}

// SyncResponse summarizes a manual reconciliation pass.
type SyncResponse struct {
	Fetched   int             `json:"fetched"`
	Created   int             `json:"created"`
	Updated   int             `json:"updated"`
	Unchanged int             `json:"unchanged"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Deleted   int             `json:"deleted"`
	Removed   []string        `json:"removed,omitempty"`
	Run       *models.SyncRun `json:"run,omitempty"`
}

func newSyncResponse(res *tasks.ImportResult) SyncResponse {
	return SyncResponse{
		Fetched:   res.Fetched,
		Created:   res.Created,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
		Deleted:   res.Deleted,
		Removed:   res.Removed,
		Run:       res.Run,
	}
}

// SyncHandler runs a reconciliation pass on request and replies when it finishes.
type SyncHandler struct {
	agent  Agent
	logger *log.Logger
}

func NewSyncHandler(agent Agent, logger *log.Logger) *SyncHandler {
	return &SyncHandler{agent: agent, logger: logger}
}

func (h *SyncHandler) Routes() []string {
	return []string{"POST /sync"}
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.agent == nil {
		writeError(w, http.StatusServiceUnavailable, shared.ErrServiceUnavailable.Error())
		return
	}

	res, err := h.agent.Sync(r.Context(), nil, tasks.SourceManual)
	if err != nil {
		h.logger.Error("manual sync failed", "error", err)
		writeError(w, syncErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newSyncResponse(res))
}

func syncErrorStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

// StatusResponse reports the latest recorded run, the next scheduled run and the library size.
type StatusResponse struct {
	LatestRun     *models.SyncRun `json:"latest_run,omitempty"`
	NextSync      *time.Time      `json:"next_sync,omitempty"`
	LibraryTracks int             `json:"library_tracks"`
}

// StatusHandler serves GET /status.
type StatusHandler struct {
	agent  Agent
	runs   RunHistory
	tracks TrackCounter
}

func NewStatusHandler(agent Agent, runs RunHistory, tracks TrackCounter) *StatusHandler {
	return &StatusHandler{agent: agent, runs: runs, tracks: tracks}
}

func (h *StatusHandler) Routes() []string {
	return []string{"GET /status"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse

	if h.runs != nil {
		run, err := h.runs.Latest(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.LatestRun = run
	}

	if h.agent != nil {
		if next := h.agent.NextSync(); !next.IsZero() {
			resp.NextSync = &next
		}
	}

	if h.tracks != nil {
		n, err := h.tracks.Count(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.LibraryTracks = n
	}

	writeJSON(w, http.StatusOK, resp)
}
