package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// playlistURI accepts either a full URI or a bare recommendation playlist id.
func playlistURI(arg string) string {
	arg = strings.TrimSpace(arg)
	if arg == "" || strings.Contains(arg, ":") {
		return arg
	}
	return models.RecommendationURI(arg)
}

type playlistSummary struct {
	URI          string `json:"uri"`
	Name         string `json:"name"`
	Tracks       int    `json:"tracks"`
	LastModified int64  `json:"last_modified"`
}

// PlaylistsList prints the playlists in the local store.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	s, err := r.buildStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	all, err := s.playlists.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	summaries := []playlistSummary{}
	for _, pl := range all {
		if !cmd.Bool("all") && !models.IsManaged(pl.URI) {
			continue
		}
		summaries = append(summaries, playlistSummary{URI: pl.URI, Name: pl.Name, Tracks: len(pl.Tracks), LastModified: pl.LastModified})
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, cmd.Bool("pretty"))
	}
	if len(summaries) == 0 {
		return r.writePlain("No playlists found. Run 'lbx sync run' first.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(summaries)))
	for _, pl := range summaries {
		r.writePlain("%-40s %4d tracks  %s\n", pl.Name, pl.Tracks, pl.URI)
	}
	return nil
}

// PlaylistsShow prints one playlist with its tracks.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	uri := playlistURI(cmd.StringArg("playlist"))
	if uri == "" {
		return fmt.Errorf("%w: playlist uri or id", shared.ErrMissingArgument)
	}

	if err := r.configure(cmd); err != nil {
		return err
	}
	s, err := r.buildStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	pl, err := s.playlists.Lookup(ctx, uri)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(pl, cmd.Bool("pretty"))
	}

	r.writePlainHeader(pl.Name)
	r.writePlain("URI: %s\n", pl.URI)
	r.writePlain("Tracks: %d\n\n", len(pl.Tracks))
	for i, t := range pl.Tracks {
		r.writePlain("%3d. %s\n", i+1, t.String())
	}
	return nil
}

// PlaylistsExport writes playlists to disk in the requested format.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	s, err := r.buildStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	var uris []string
	for _, arg := range cmd.StringArgs("playlists") {
		uris = append(uris, playlistURI(arg))
	}

	opts := tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
	}

	engine := tasks.NewPlaylistEngine(s.playlists, nil, nil, nil, r.logger)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			r.printProgress(update)
		}
	}()

	result, err := engine.BulkExport(ctx, progressCh, uris, opts)
	close(progressCh)
	wg.Wait()

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Exported: %d/%d\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.FailedExports > 0 {
		r.writePlain("\nFailed:\n")
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %v\n", res.URI, res.Error)
			}
		}
		return fmt.Errorf("%d of %d playlists failed to export", result.FailedExports, result.TotalPlaylists)
	}
	return nil
}

// PlaylistsDelete removes a mirrored playlist. Playlists outside the namespace are refused.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	uri := playlistURI(cmd.StringArg("playlist"))
	if uri == "" {
		return fmt.Errorf("%w: playlist uri or id", shared.ErrMissingArgument)
	}
	if !models.IsManaged(uri) {
		return fmt.Errorf("%w: %s", shared.ErrOutsideNamespace, uri)
	}

	if err := r.configure(cmd); err != nil {
		return err
	}
	s, err := r.buildStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	deleted, err := s.playlists.Delete(ctx, uri)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, uri)
	}
	return r.writePlain("✓ Deleted %s\n", uri)
}
