package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/desertthunder/lbx/internal/library"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) libraryRoot(cmd *cli.Command) string {
	if root := cmd.String("root"); root != "" {
		return root
	}
	return r.config.Library.Root
}

// LibraryScan indexes the library once.
func (r *Runner) LibraryScan(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	s, err := r.buildStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	scanner := library.NewScanner(r.libraryRoot(cmd), s.tracks, r.logger)
	r.writePlain("Scanning %s...\n", scanner.Root())

	res, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Scan Complete!")
	r.writePlain("Audio files: %d\n", res.Files)
	r.writePlain("Indexed:     %d (%d without tags)\n", res.Indexed, res.Tagless)
	r.writePlain("Pruned:      %d\n", res.Pruned)
	r.writePlain("Total:       %d\n", res.Total)
	if res.Failed > 0 {
		r.writePlain("Failed:      %d, see the log for details\n", res.Failed)
	}
	return nil
}

// LibraryWatch scans once and then rescans after changes until interrupted.
func (r *Runner) LibraryWatch(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	s, err := r.buildStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanner := library.NewScanner(r.libraryRoot(cmd), s.tracks, r.logger)
	if _, err := scanner.Scan(ctx); err != nil {
		return err
	}

	watcher := library.NewWatcher(scanner.Root(), r.config.Library.Debounce(), r.rescan(scanner), r.logger)
	r.writePlain("Watching %s, press Ctrl+C to stop\n", scanner.Root())
	return watcher.Run(ctx)
}

func (r *Runner) rescan(scanner *library.Scanner) func(ctx context.Context) {
	return func(ctx context.Context) {
		if _, err := scanner.Scan(ctx); err != nil {
			r.logger.Error("library rescan failed", "error", err)
		}
	}
}

// LibrarySearch queries the index by recording id or keywords.
func (r *Runner) LibrarySearch(ctx context.Context, cmd *cli.Command) error {
	query := models.TrackQuery{MBID: strings.TrimSpace(cmd.String("mbid"))}
	for _, kw := range cmd.StringArgs("keywords") {
		if kw = strings.TrimSpace(kw); kw != "" {
			query.Any = append(query.Any, kw)
		}
	}
	if query.MBID == "" && len(query.Any) == 0 {
		return fmt.Errorf("%w: --mbid or keywords", shared.ErrMissingArgument)
	}

	if err := r.configure(cmd); err != nil {
		return err
	}
	s, err := r.buildStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	found, err := s.tracks.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to search library: %w", err)
	}

	if cmd.Bool("json") {
		if found == nil {
			found = []models.LocalTrack{}
		}
		return r.writeJSON(found, cmd.Bool("pretty"))
	}
	if len(found) == 0 {
		return r.writePlain("No tracks found\n")
	}
	for _, t := range found {
		r.writePlain("%s\n    %s\n", t.String(), t.URI)
	}
	return nil
}
