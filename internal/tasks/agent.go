package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

// AgentOpts configures an [Agent].
type AgentOpts struct {
	Engine          *PlaylistEngine
	Listens         *ListenSubmitter
	ImportPlaylists bool // run a pass at startup and every Monday
	Logger          *log.Logger
}

// Agent serializes reconciliation passes and playback notifications behind one mutex.
type Agent struct {
	mu        sync.Mutex
	engine    *PlaylistEngine
	listens   *ListenSubmitter
	scheduler *Scheduler
	enabled   bool
	logger    *log.Logger
	last      *ImportResult
	lastErr   error
}

// NewAgent creates an Agent with a weekly scheduler bound to its sync job.
func NewAgent(opts AgentOpts) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	a := &Agent{
		engine:  opts.Engine,
		listens: opts.Listens,
		enabled: opts.ImportPlaylists && opts.Engine != nil,
		logger:  logger,
	}
	a.scheduler = NewScheduler(func(ctx context.Context) {
		if _, err := a.Sync(ctx, nil, SourceScheduler); err != nil {
			a.logger.Error("Scheduled playlist import failed", "error", err)
		}
	}, logger)
	return a
}

// Sync runs a reconciliation pass. Passes never overlap with each other or with playback handling.
func (a *Agent) Sync(ctx context.Context, progress chan<- ProgressUpdate, source string) (*ImportResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil {
		return nil, shared.ErrServiceUnavailable
	}

	a.logger.Info("Importing ListenBrainz playlists", "source", source)
	res, err := a.engine.Import(ctx, progress, source)
	a.last, a.lastErr = res, err
	return res, err
}

// PlaybackStarted forwards a "playing now" notification.
func (a *Agent) PlaybackStarted(ctx context.Context, pb models.Playback) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listens == nil {
		return false
	}
	return a.listens.PlaybackStarted(ctx, pb)
}

// PlaybackEnded forwards a playback end notification; position is in whole seconds.
func (a *Agent) PlaybackEnded(ctx context.Context, pb models.Playback, position int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listens == nil {
		return false
	}
	return a.listens.PlaybackEnded(ctx, pb, position)
}

// LastResult returns the outcome of the most recent pass run by this agent.
func (a *Agent) LastResult() (*ImportResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last, a.lastErr
}

// NextSync returns when the scheduler will run next, or the zero time.
func (a *Agent) NextSync() time.Time {
	return a.scheduler.Next()
}

// Run imports playlists once, then keeps the weekly schedule until ctx is done.
// It does nothing but wait when playlist import is disabled.
func (a *Agent) Run(ctx context.Context) error {
	if a.enabled {
		if _, err := a.Sync(ctx, nil, SourceStartup); err != nil {
			a.logger.Error("Initial playlist import failed", "error", err)
		}
		a.scheduler.Start(ctx)
		defer a.scheduler.Stop()
	}

	<-ctx.Done()
	return nil
}

// Stop cancels the next scheduled run and waits for the scheduler to exit.
func (a *Agent) Stop() {
	a.scheduler.Stop()
}
