package tasks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tu "github.com/desertthunder/lbx/internal/testing"
)

func TestNextMonday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "Monday is a full week",
			now:  time.Date(2026, 10, 12, 9, 30, 0, 0, time.UTC),
			want: time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "Saturday",
			now:  time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "Sunday",
			now:  time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC),
			want: time.Date(2026, 10, 19, 23, 59, 0, 0, time.UTC),
		},
		{
			name: "Wednesday across a month",
			now:  time.Date(2026, 9, 30, 6, 0, 0, 0, time.UTC),
			want: time.Date(2026, 10, 5, 6, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextMonday(tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("NextMonday(%s) = %s, want %s", tt.now, got, tt.want)
			}
			if got.Weekday() != time.Monday {
				t.Errorf("expected Monday, got %s", got.Weekday())
			}
		})
	}
}

func newTestScheduler(job func(context.Context), interval time.Duration) *Scheduler {
	s := NewScheduler(job, tu.DiscardLogger())
	s.next = func(now time.Time) time.Time { return now.Add(interval) }
	return s
}

func TestScheduler(t *testing.T) {
	t.Run("Runs Job And Reanchors", func(t *testing.T) {
		var runs atomic.Int32
		done := make(chan struct{})
		s := newTestScheduler(func(ctx context.Context) {
			if runs.Add(1) == 2 {
				close(done)
			}
		}, 5*time.Millisecond)

		s.Start(context.Background())
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not run twice")
		}
		s.Stop()

		if s.Next() != (time.Time{}) {
			t.Error("expected no pending run after Stop")
		}
	})

	t.Run("Stop Cancels Pending Wait", func(t *testing.T) {
		var runs atomic.Int32
		s := newTestScheduler(func(ctx context.Context) { runs.Add(1) }, time.Hour)

		s.Start(context.Background())
		deadline := time.Now().Add(time.Second)
		for s.Next().IsZero() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		if s.Next().IsZero() {
			t.Fatal("expected a pending run")
		}

		stopped := make(chan struct{})
		go func() {
			s.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop did not return")
		}
		if runs.Load() != 0 {
			t.Error("job should not have run")
		}
	})

	t.Run("Stop Without Start", func(t *testing.T) {
		s := newTestScheduler(func(ctx context.Context) {}, time.Hour)
		s.Stop()
		s.Stop()
	})

	t.Run("Start Twice", func(t *testing.T) {
		var runs atomic.Int32
		s := newTestScheduler(func(ctx context.Context) { runs.Add(1) }, 20*time.Millisecond)

		s.Start(context.Background())
		s.Start(context.Background())
		time.Sleep(30 * time.Millisecond)
		s.Stop()

		if got := runs.Load(); got > 1 {
			t.Errorf("expected a single loop, got %d runs", got)
		}
	})

	t.Run("Stop Waits For Running Job", func(t *testing.T) {
		started := make(chan struct{})
		var finished atomic.Bool
		s := newTestScheduler(func(ctx context.Context) {
			close(started)
			time.Sleep(50 * time.Millisecond)
			if ctx.Err() == nil {
				finished.Store(true)
			}
		}, time.Millisecond)
		s.next = func(now time.Time) time.Time {
			if finished.Load() {
				return now.Add(time.Hour)
			}
			return now.Add(time.Millisecond)
		}

		s.Start(context.Background())
		<-started
		s.Stop()

		if !finished.Load() {
			t.Error("running job should finish with a live context")
		}
	})

	t.Run("Parent Context Cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := newTestScheduler(func(ctx context.Context) {}, time.Hour)

		s.Start(ctx)
		cancel()
		s.Stop()
	})
}
