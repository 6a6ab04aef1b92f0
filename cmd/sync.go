package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun runs a single reconciliation pass and prints its counts.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	s, err := r.buildStack(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	useJSON := cmd.Bool("json")
	if !useJSON {
		r.writePlain("Syncing recommendation playlists for %s...\n", s.remote.Identity())
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			if !useJSON {
				r.printProgress(update)
			}
		}
	}()

	result, err := s.engine.Import(ctx, progressCh, tasks.SourceCLI)
	close(progressCh)
	wg.Wait()

	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(result.Run, cmd.Bool("pretty"))
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete!")
	r.writePlain("Fetched:   %d\n", result.Fetched)
	r.writePlain("Created:   %d\n", result.Created)
	r.writePlain("Updated:   %d\n", result.Updated)
	r.writePlain("Unchanged: %d\n", result.Unchanged)
	r.writePlain("Deleted:   %d\n", result.Deleted)
	if result.Skipped > 0 {
		r.writePlain("\n%d playlists had no tracks in the library and kept their previous version\n", result.Skipped)
	}
	if result.Failed > 0 {
		r.writePlain("%d playlists failed, see the log for details\n", result.Failed)
	}
	return nil
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.ValidateToken, tasks.FetchPlaylists:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.FetchDetail:
		r.writePlain("\n🔍 [%d/%d] %s\n", update.Step, update.Total, update.Message)
	case tasks.ResolveTracks, tasks.SavePlaylist:
		r.writePlain("   %s\n", update.Message)
	case tasks.DeletePlaylist:
		r.writePlain("🗑  %s\n", update.Message)
	case tasks.ExportPlaylist:
		r.writePlain("📝 [%d/%d] %s\n", update.Step, update.Total, update.Message)
	}
}

// SyncHistory lists recorded sync runs.
func (r *Runner) SyncHistory(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	s, err := r.buildStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.runs.List(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list sync runs: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, cmd.Bool("pretty"))
	}

	if len(runs) == 0 {
		return r.writePlain("No sync runs recorded yet\n")
	}

	r.writePlainHeader("Sync History")
	for _, run := range runs {
		r.writePlain("%s  %-9s  %-9s  %s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"), run.Source, run.Status, runSummary(run))
		if run.ErrorMessage != "" {
			r.writePlain("    error: %s\n", run.ErrorMessage)
		}
	}
	return nil
}

func runSummary(run *models.SyncRun) string {
	summary := fmt.Sprintf("fetched %d, created %d, updated %d, unchanged %d, deleted %d",
		run.Fetched, run.Created, run.Updated, run.Unchanged, run.Deleted)
	if d := run.Duration(); d > 0 {
		summary += fmt.Sprintf(" in %s", d.Round(time.Millisecond))
	}
	return summary
}
