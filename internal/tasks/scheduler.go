package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/shared"
)

// NextMonday returns the same clock time on the next Monday. On a Monday it is a full week ahead.
func NextMonday(now time.Time) time.Time {
	weekday := (int(now.Weekday()) + 6) % 7 // Monday = 0
	return now.AddDate(0, 0, 7-weekday)
}

// Scheduler runs a job once per anchor time, recomputing the anchor after each run.
type Scheduler struct {
	job    func(ctx context.Context)
	next   func(now time.Time) time.Time
	now    func() time.Time
	logger *log.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending time.Time
}

// NewScheduler creates a weekly scheduler for job anchored on [NextMonday].
func NewScheduler(job func(ctx context.Context), logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{job: job, next: NextMonday, now: time.Now, logger: logger}
}

// Start launches the scheduling goroutine. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop cancels the pending wait and joins the goroutine, letting a run in progress finish.
// Safe to call when the scheduler never started, and more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Next returns the anchor of the pending run, or the zero time when nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	defer s.setPending(time.Time{})

	for {
		now := s.now()
		at := s.next(now)
		s.setPending(at)
		s.logger.Debug("Playlist update scheduled", "at", at.Format(time.RFC3339), "in", at.Sub(now).Round(time.Second))

		timer := time.NewTimer(at.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.job(context.WithoutCancel(ctx))
	}
}

func (s *Scheduler) setPending(at time.Time) {
	s.mu.Lock()
	s.pending = at
	s.mu.Unlock()
}
