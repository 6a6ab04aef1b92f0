// package tasks implements the recommendation playlist reconciler and the listen submitter.
//
// The core abstraction is PlaylistEngine, which mirrors remote playlists into the local store.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/metrics"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

// Sources recorded on a sync run
const (
	SourceScheduler = "scheduler"
	SourceStartup   = "startup"
	SourceManual    = "manual"
	SourceCLI       = "cli"
	SourceTUI       = "tui"
)

// RemoteClient is the subset of the ListenBrainz client used by the reconciler.
type RemoteClient interface {
	Valid() bool
	Identity() string
	ValidateToken(ctx context.Context) (bool, string)
	ListPlaylistIDsForUser(ctx context.Context, identity string) ([]string, error)
	FetchPlaylistDetail(ctx context.Context, playlistID string) *models.PlaylistData
}

// RunRecorder persists sync history.
type RunRecorder interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Update(ctx context.Context, run *models.SyncRun) error
}

// ImportResult summarizes one reconciliation pass.
type ImportResult struct {
	Fetched   int // playlist details parsed
	Created   int // new local playlists
	Updated   int // existing playlists replaced by a longer version
	Unchanged int // saves rejected by the non-regression gate
	Skipped   int // playlists without any known track
	Failed    int // details, creates or saves that failed
	Deleted   int // orphans removed

	Playlists []models.LocalPlaylist // stored version of every saved playlist
	Removed   []string               // URIs of deleted playlists
	Run       *models.SyncRun        // nil when no recorder is configured
}

// Saved is the number of playlists written or confirmed by the pass.
func (r *ImportResult) Saved() int {
	return r.Created + r.Updated + r.Unchanged
}

// PlaylistEngine reconciles remote recommendation playlists with the local store.
type PlaylistEngine struct {
	store    models.PlaylistStore
	remote   RemoteClient
	resolver *TrackResolver
	runs     RunRecorder
	logger   *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine. runs may be nil.
func NewPlaylistEngine(store models.PlaylistStore, remote RemoteClient, resolver *TrackResolver, runs RunRecorder, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{
		store:    store,
		remote:   remote,
		resolver: resolver,
		runs:     runs,
		logger:   logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Import performs one reconciliation pass.
//
// Every remote playlist with at least one resolved track is created or saved under its recommendation URI,
// in remote order. Local recommendation playlists that the remote no longer lists are deleted.
// A cancelled context stops the pass before any deletion.
func (e *PlaylistEngine) Import(ctx context.Context, progress chan<- ProgressUpdate, source string) (*ImportResult, error) {
	if e.remote == nil || e.store == nil || e.resolver == nil {
		return nil, fmt.Errorf("%w: playlist engine not initialized", shared.ErrServiceUnavailable)
	}

	started := time.Now()
	result := &ImportResult{}
	e.beginRun(ctx, result, source, started)

	err := e.reconcile(ctx, progress, result)
	e.finishRun(ctx, result, started, err)

	if err != nil {
		return result, err
	}

	e.logger.Info("Successfully imported ListenBrainz playlists",
		"saved", result.Saved(), "created", result.Created, "updated", result.Updated,
		"skipped", result.Skipped, "deleted", result.Deleted)
	return result, nil
}

func (e *PlaylistEngine) reconcile(ctx context.Context, progress chan<- ProgressUpdate, result *ImportResult) error {
	if !e.remote.Valid() {
		e.sendProgress(progress, validateTokenUpdate())
		if ok, _ := e.remote.ValidateToken(ctx); !ok {
			return fmt.Errorf("%w: ListenBrainz token is not valid", shared.ErrNotAuthenticated)
		}
	}
	identity := e.remote.Identity()

	stored, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list local playlists: %w", err)
	}

	existing := make(map[string]models.LocalPlaylist)
	for _, pl := range stored {
		if models.IsRecommendation(pl.URI) {
			existing[pl.URI] = pl
		}
	}

	e.sendProgress(progress, fetchPlaylistsUpdate(identity))
	ids, err := e.remote.ListPlaylistIDsForUser(ctx, identity)
	if err != nil {
		return err
	}
	if !e.remote.Valid() {
		return fmt.Errorf("%w: token rejected while listing playlists", shared.ErrUnauthorized)
	}
	e.logger.Debug("Found playlists to import", "count", len(ids))
	e.sendProgress(progress, foundPlaylistsUpdate(len(ids)))

	total := len(ids)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := i + 1

		e.sendProgress(progress, fetchDetailUpdate(step, total, id))
		data := e.remote.FetchPlaylistDetail(ctx, id)
		if data == nil {
			result.Failed++
			e.sendProgress(progress, skipPlaylistUpdate(step, total, id, "could not fetch details"))
			continue
		}
		result.Fetched++

		e.importPlaylist(ctx, progress, step, total, data, existing, result)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	orphans := make([]string, 0, len(existing))
	for uri := range existing {
		orphans = append(orphans, uri)
	}
	sort.Strings(orphans)

	for i, uri := range orphans {
		e.logger.Debug("Deleting obsolete playlist", "uri", uri)
		deleted, err := e.store.Delete(ctx, uri)
		if err != nil {
			e.logger.Warn("Failed to delete playlist", "uri", uri, "error", err)
			result.Failed++
			continue
		}
		if deleted {
			result.Deleted++
			result.Removed = append(result.Removed, uri)
			e.sendProgress(progress, deletePlaylistUpdate(i+1, len(orphans), uri))
		}
	}
	return nil
}

// importPlaylist resolves and writes a single remote playlist, claiming it from existing.
func (e *PlaylistEngine) importPlaylist(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	step, total int,
	data *models.PlaylistData,
	existing map[string]models.LocalPlaylist,
	result *ImportResult,
) {
	uri := data.URI()
	logger := e.logger.With("playlist", data.PlaylistID)

	e.sendProgress(progress, resolveTracksUpdate(step, total, data))
	tracks := e.resolver.ResolveAll(ctx, data.TrackMBIDs)
	if len(tracks) == 0 {
		// Still served remotely, so a prior version stays as it is.
		delete(existing, uri)
		logger.Debug("Skipping import of playlist with no known track")
		result.Skipped++
		e.sendProgress(progress, skipPlaylistUpdate(step, total, data.Name, "no known tracks"))
		return
	}

	created := false
	if _, ok := existing[uri]; ok {
		delete(existing, uri)
		logger.Debug("Already known playlist", "uri", uri)
	} else {
		if _, err := e.store.Create(ctx, uri); err != nil {
			logger.Warn("Failed to create playlist", "error", err)
			result.Failed++
			return
		}
		created = true
		logger.Debug("Playlist created", "uri", uri)
	}

	candidate := models.LocalPlaylist{
		URI:          uri,
		Name:         data.Name,
		Tracks:       tracks,
		LastModified: data.LastModified,
	}
	saved, applied, err := e.store.Save(ctx, candidate)
	if err != nil {
		logger.Warn("Failed to save playlist", "error", err)
		result.Failed++
		if created {
			// A created playlist never holds zero tracks.
			if _, derr := e.store.Delete(ctx, uri); derr != nil {
				logger.Warn("Failed to remove empty playlist", "error", derr)
			}
		}
		return
	}

	action := "Unchanged"
	switch {
	case created:
		result.Created++
		action = "Created"
	case applied:
		result.Updated++
		action = "Updated"
	default:
		result.Unchanged++
		logger.Debug("Kept stored playlist", "stored", len(saved.Tracks), "candidate", len(tracks))
	}

	logger.Debug("Playlist saved", "uri", saved.URI, "tracks", len(saved.Tracks))
	result.Playlists = append(result.Playlists, *saved)
	e.sendProgress(progress, savePlaylistUpdate(step, total, saved, action))
}

func (e *PlaylistEngine) beginRun(ctx context.Context, result *ImportResult, source string, started time.Time) {
	if e.runs == nil {
		return
	}
	if source == "" {
		source = SourceManual
	}

	run := &models.SyncRun{Source: source, Status: models.SyncRunning, StartedAt: started, Identity: e.remote.Identity()}
	if err := e.runs.Create(ctx, run); err != nil {
		e.logger.Warn("Failed to record sync run", "error", err)
		return
	}
	result.Run = run
}

func (e *PlaylistEngine) finishRun(ctx context.Context, result *ImportResult, started time.Time, err error) {
	status := models.SyncCompleted
	if err != nil {
		status = models.SyncFailed
	}

	metrics.ObserveSyncRun(string(status), time.Since(started))
	metrics.AddPlaylistActions("created", result.Created)
	metrics.AddPlaylistActions("updated", result.Updated)
	metrics.AddPlaylistActions("unchanged", result.Unchanged)
	metrics.AddPlaylistActions("skipped", result.Skipped)
	metrics.AddPlaylistActions("failed", result.Failed)
	metrics.AddPlaylistActions("deleted", result.Deleted)

	run := result.Run
	if run == nil {
		return
	}

	completed := time.Now()
	run.Identity = e.remote.Identity()
	run.Status = status
	run.Fetched = result.Fetched
	run.Created = result.Created
	run.Updated = result.Updated
	run.Unchanged = result.Unchanged
	run.Skipped = result.Skipped
	run.Failed = result.Failed
	run.Deleted = result.Deleted
	run.CompletedAt = &completed
	if err != nil {
		run.ErrorMessage = err.Error()
	}

	// The pass context may already be cancelled; the record still needs writing.
	if uerr := e.runs.Update(context.WithoutCancel(ctx), run); uerr != nil {
		e.logger.Warn("Failed to update sync run", "id", run.RunID, "error", uerr)
	}
}
