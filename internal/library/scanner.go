// Package library indexes the local music collection so recommendation tracks can be resolved by MBID.
//
// [Scanner] walks a root directory, reads tags with dhowden/tag and upserts one row per audio file.
// [Watcher] triggers a rescan after file system changes settle.
package library

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/metrics"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/dhowden/tag"
	"github.com/dhowden/tag/mbz"
)

// TrackScheme prefixes every URI produced by the scanner.
const TrackScheme = models.LocalScheme + "track:"

const musicBrainzProvider = "http://musicbrainz.org"

var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".wma":  true,
	".aac":  true,
	".alac": true,
}

// IsAudioFile reports whether name has a recognized audio extension.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// TrackURI builds the library URI for a path relative to the scan root, escaping each segment.
func TrackURI(rel string) string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return TrackScheme + strings.Join(parts, "/")
}

// TrackStore is the index written by the scanner.
type TrackStore interface {
	Upsert(ctx context.Context, track models.LocalTrack, scannedAt time.Time) error
	Prune(ctx context.Context, scheme string, cutoff time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// ScanResult summarizes a library scan.
type ScanResult struct {
	Root     string
	Files    int // audio files found
	Indexed  int // rows written
	Tagless  int // files indexed from their file name
	Failed   int // files that could not be read or stored
	Pruned   int // rows removed for files that disappeared
	Total    int // rows in the index afterwards
	Duration time.Duration
}

// Scanner indexes audio files below Root.
type Scanner struct {
	root   string
	store  TrackStore
	logger *log.Logger
	now    func() time.Time
}

// NewScanner creates a scanner for root. A leading "~" is expanded.
func NewScanner(root string, store TrackStore, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scanner{root: shared.ExpandHome(root), store: store, logger: logger, now: time.Now}
}

// Root returns the directory being indexed.
func (s *Scanner) Root() string { return s.root }

// Scan walks the root, upserts every audio file and prunes tracks that were not seen.
//
// Pruning is skipped when the scan is cancelled so a partial walk never empties the index.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	started := s.now()
	result := &ScanResult{Root: s.root}

	info, err := os.Stat(s.root)
	if err != nil {
		metrics.IncLibraryScan("failed")
		return nil, fmt.Errorf("%w: library root %s: %v", shared.ErrInvalidConfig, s.root, err)
	}
	if !info.IsDir() {
		metrics.IncLibraryScan("failed")
		return nil, fmt.Errorf("%w: library root %s is not a directory", shared.ErrInvalidConfig, s.root)
	}

	s.logger.Info("Scanning library", "root", s.root)

	walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.logger.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !IsAudioFile(path) {
			return nil
		}

		result.Files++
		track, tagged, err := ReadTrack(s.root, path)
		if err != nil {
			s.logger.Warn("Failed to read track", "path", path, "error", err)
			result.Failed++
			return nil
		}
		if !tagged {
			result.Tagless++
		}

		if err := s.store.Upsert(ctx, track, started); err != nil {
			s.logger.Warn("Failed to index track", "uri", track.URI, "error", err)
			result.Failed++
			return nil
		}
		result.Indexed++
		return nil
	})
	if walkErr != nil {
		metrics.IncLibraryScan("cancelled")
		return result, fmt.Errorf("library scan interrupted: %w", walkErr)
	}

	pruned, err := s.store.Prune(ctx, TrackScheme, started)
	if err != nil {
		metrics.IncLibraryScan("failed")
		return result, fmt.Errorf("failed to prune library: %w", err)
	}
	result.Pruned = pruned

	if total, err := s.store.Count(ctx); err == nil {
		result.Total = total
		metrics.SetLibraryTracks(total)
	}

	result.Duration = s.now().Sub(started)
	metrics.IncLibraryScan("completed")
	s.logger.Info("Library scan complete",
		"files", result.Files, "indexed", result.Indexed, "tagless", result.Tagless,
		"failed", result.Failed, "pruned", result.Pruned, "duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// ReadTrack reads the tags of the file at path. Files without readable tags are described by their file name
// and tagged is false.
func ReadTrack(root, path string) (track models.LocalTrack, tagged bool, err error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return track, false, fmt.Errorf("failed to relativize %s: %w", path, err)
	}

	track = models.LocalTrack{URI: TrackURI(rel), Path: path}

	f, err := os.Open(path)
	if err != nil {
		return track, false, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		track.Artist, track.Name = fromFilename(path)
		return track, false, nil
	}

	track.Name = strings.TrimSpace(m.Title())
	track.Artist = strings.TrimSpace(m.Artist())
	track.Album = strings.TrimSpace(m.Album())
	track.MBID = recordingMBID(m)

	if track.Name == "" {
		artist, title := fromFilename(path)
		track.Name = title
		if track.Artist == "" {
			track.Artist = artist
		}
	}
	return track, true, nil
}

// recordingMBID extracts the MusicBrainz recording id from mbz fields, the ID3 UFID frame, or the Vorbis comment.
func recordingMBID(m tag.Metadata) string {
	if id := strings.TrimSpace(mbz.Extract(m)[mbz.Recording]); id != "" {
		return id
	}

	raw := m.Raw()
	if ufid, ok := raw["UFID"].(*tag.UFID); ok && ufid.Provider == musicBrainzProvider {
		return strings.TrimSpace(string(ufid.Identifier))
	}
	for _, key := range []string{"musicbrainz_trackid", "MUSICBRAINZ_TRACKID"} {
		if v, ok := raw[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// fromFilename splits "NN Artist - Title.ext" into artist and title. Without a separator the whole name is the title.
func fromFilename(path string) (artist, title string) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if fields := strings.Fields(name); len(fields) > 1 {
		if _, err := strconv.Atoi(strings.TrimRight(fields[0], ".")); err == nil {
			name = strings.Join(fields[1:], " ")
		}
	}
	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "-"))

	if a, t, ok := strings.Cut(name, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", name
}
