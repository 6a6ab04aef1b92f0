package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/lbx/internal/formatter"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     string // Export format: m3u, csv, markdown, txt, json
	OutputDir  string // Base output directory (default: lbx_export_{epoch})
	NumWorkers int    // Concurrent workers (default: 4)
}

// PlaylistExportJob is a playlist queued for a worker.
type PlaylistExportJob struct {
	Playlist models.LocalPlaylist
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	URI     string
	Name    string
	Success bool
	Files   []string
	Error   error
}

// BulkExportResult contains the outcome of a bulk export.
type BulkExportResult struct {
	TotalPlaylists    int
	SuccessfulExports int
	FailedExports     int
	OutputDirectory   string
	ManifestPath      string
	Results           []PlaylistExportResult
}

// Manifest converts the result into the manifest written next to the exports.
func (r *BulkExportResult) Manifest(format string) formatter.ExportManifest {
	m := formatter.ExportManifest{
		Format:            format,
		OutputDirectory:   r.OutputDirectory,
		TotalPlaylists:    r.TotalPlaylists,
		SuccessfulExports: r.SuccessfulExports,
		FailedExports:     r.FailedExports,
		Playlists:         make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		entry := formatter.ManifestEntry{URI: res.URI, Name: res.Name, Status: "success", Files: res.Files}
		if !res.Success {
			entry.Status = "failed"
			if res.Error != nil {
				entry.Error = res.Error.Error()
			}
		}
		m.Playlists = append(m.Playlists, entry)
	}
	return m
}

// BulkExport writes managed playlists to disk with a pool of workers and a manifest summarizing the results.
//
// An empty uris slice exports every playlist in the listenbrainz namespace.
// Partial failures are recorded per playlist and do not abort the export.
func (e *PlaylistEngine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, uris []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: playlist store not initialized", shared.ErrServiceUnavailable)
	}

	if opts.Format == "" {
		opts.Format = formatter.FormatM3U
	}
	if !slices.Contains(formatter.Formats, opts.Format) {
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("lbx_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	if len(uris) == 0 {
		all, err := e.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}
		for _, pl := range all {
			if models.IsManaged(pl.URI) {
				uris = append(uris, pl.URI)
			}
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalPlaylists:  len(uris),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(uris)),
	}

	jobs := make(chan PlaylistExportJob, len(uris))
	results := make(chan PlaylistExportResult, len(uris))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for i, uri := range uris {
			if ctx.Err() != nil {
				return
			}

			pl, err := e.store.Lookup(ctx, uri)
			if err != nil {
				results <- PlaylistExportResult{
					URI:   uri,
					Name:  fmt.Sprintf("Unknown (%s)", uri),
					Error: fmt.Errorf("failed to load playlist: %w", err),
				}
				continue
			}

			jobs <- PlaylistExportJob{Playlist: *pl}
			e.sendProgress(prog, exportingPlaylistUpdate(i+1, len(uris), pl.Name))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(uris), res.Name, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(uris), res.Name, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(result.Manifest(opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// exportWorker is a worker goroutine that exports playlists from the jobs channel.
func (e *PlaylistEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan PlaylistExportJob,
	results chan<- PlaylistExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- exportSinglePlaylist(job, opts)
	}
}

// exportSinglePlaylist exports a single playlist to the requested format.
func exportSinglePlaylist(j PlaylistExportJob, opts BulkExportOpts) PlaylistExportResult {
	pl := &j.Playlist
	result := PlaylistExportResult{
		URI:   pl.URI,
		Name:  pl.Name,
		Files: []string{},
	}
	base := filepath.Join(opts.OutputDir, formatter.Slug(pl.URI))

	var (
		path string
		err  error
	)
	switch opts.Format {
	case formatter.FormatCSV:
		var csvRes *formatter.CSVExportResult
		if csvRes, err = formatter.WriteCSVExport(pl, base); err == nil {
			result.Files = []string{csvRes.TracksFile, csvRes.MetadataFile}
		}
	case formatter.FormatMarkdown:
		path, err = formatter.WriteMarkdownExport(pl, base)
	case formatter.FormatText:
		path, err = formatter.WriteTextExport(pl, base+"_tracks.txt")
	case formatter.FormatJSON:
		path, err = formatter.WriteJSONExport(pl, base+".json")
	default:
		path, err = formatter.WriteM3UExport(pl, base+".m3u")
	}

	if err != nil {
		result.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return result
	}
	if path != "" {
		result.Files = []string{path}
	}
	result.Success = true
	return result
}
