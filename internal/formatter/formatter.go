// package formatter exports local playlists to M3U, CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

// Supported export formats
const (
	FormatM3U      = "m3u"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
	FormatJSON     = "json"
)

// Formats lists every supported export format.
var Formats = []string{FormatM3U, FormatCSV, FormatMarkdown, FormatText, FormatJSON}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug derives a filesystem-safe base name from a playlist URI, using its last segment.
func Slug(uri string) string {
	if i := strings.LastIndex(uri, ":"); i >= 0 {
		uri = uri[i+1:]
	}
	slug := strings.Trim(unsafeChars.ReplaceAllString(uri, "_"), "_")
	if slug == "" {
		return "playlist"
	}
	return slug
}

// ExportToM3U renders an extended M3U playlist.
// Tracks without a file path fall back to their URI.
func ExportToM3U(pl *models.LocalPlaylist) []byte {
	var buf bytes.Buffer

	buf.WriteString("#EXTM3U\n")
	fmt.Fprintf(&buf, "#PLAYLIST:%s\n", pl.Name)

	for _, track := range pl.Tracks {
		fmt.Fprintf(&buf, "#EXTINF:-1,%s\n", track.String())
		if track.Path != "" {
			buf.WriteString(track.Path)
		} else {
			buf.WriteString(track.URI)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// ExportToCSV converts a playlist to CSV with columns: Position, Title, Artist, Album, MBID, URI
func ExportToCSV(pl *models.LocalPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Album", "MBID", "URI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range pl.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.Name,
			track.Artist,
			track.Album,
			track.MBID,
			track.URI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist to Markdown with a numbered track list
func ExportToMarkdown(pl *models.LocalPlaylist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", pl.Name)
	fmt.Fprintf(&buf, "**URI**: `%s`\n", pl.URI)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(pl.Tracks))
	if pl.LastModified > 0 {
		fmt.Fprintf(&buf, "**Updated**: %s\n", formatModified(pl.LastModified))
	}
	buf.WriteString("\n## Tracks\n\n")

	for i, track := range pl.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		mbid := ""
		if track.MBID != "" {
			mbid = fmt.Sprintf(" [mbid](https://musicbrainz.org/recording/%s)", track.MBID)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s%s\n", i+1, track.Artist, track.Name, albumPart, mbid)
	}

	return buf.Bytes()
}

// ExportToText converts a playlist to plain text
func ExportToText(pl *models.LocalPlaylist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", pl.Name)
	fmt.Fprintf(&buf, "URI: %s\n", pl.URI)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(pl.Tracks))

	for i, track := range pl.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, track.String())
	}

	return buf.Bytes()
}

// PlaylistMetadata is the JSON summary of a playlist without its tracks.
type PlaylistMetadata struct {
	URI          string `json:"uri"`
	Name         string `json:"name"`
	TrackCount   int    `json:"track_count"`
	LastModified string `json:"last_modified,omitempty"`
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(pl *models.LocalPlaylist) ([]byte, error) {
	meta := PlaylistMetadata{URI: pl.URI, Name: pl.Name, TrackCount: len(pl.Tracks)}
	if pl.LastModified > 0 {
		meta.LastModified = formatModified(pl.LastModified)
	}
	return shared.MarshalJSON(meta, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to the playlist slug as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(pl *models.LocalPlaylist, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = Slug(pl.URI)
	}

	csvData, err := ExportToCSV(pl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(pl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport writes {dir}/README.md for a playlist, creating the directory.
//
// Directory name defaults to the playlist slug.
func WriteMarkdownExport(pl *models.LocalPlaylist, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = Slug(pl.URI)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, ExportToMarkdown(pl), 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return mdFile, nil
}

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {slug}_tracks.txt as the filename.
func WriteTextExport(pl *models.LocalPlaylist, path string) (string, error) {
	if path == "" {
		path = Slug(pl.URI) + "_tracks.txt"
	}
	if err := os.WriteFile(path, ExportToText(pl), 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// WriteM3UExport writes an extended M3U file, defaulting to {slug}.m3u.
func WriteM3UExport(pl *models.LocalPlaylist, path string) (string, error) {
	if path == "" {
		path = Slug(pl.URI) + ".m3u"
	}
	if err := os.WriteFile(path, ExportToM3U(pl), 0644); err != nil {
		return "", fmt.Errorf("failed to write M3U file: %w", err)
	}
	return path, nil
}

// WriteJSONExport writes the full playlist, tracks included, defaulting to {slug}.json.
func WriteJSONExport(pl *models.LocalPlaylist, path string) (string, error) {
	if path == "" {
		path = Slug(pl.URI) + ".json"
	}
	data, err := shared.MarshalJSON(pl, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// ManifestEntry describes the export of a single playlist.
type ManifestEntry struct {
	URI    string   `json:"uri"`
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Files  []string `json:"files,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// ExportManifest summarizes a bulk export.
type ExportManifest struct {
	Format            string          `json:"format"`
	ExportedAt        time.Time       `json:"exported_at"`
	OutputDirectory   string          `json:"output_directory,omitempty"`
	TotalPlaylists    int             `json:"total_playlists"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Playlists         []ManifestEntry `json:"playlists"`
}

// WriteBulkExportManifest writes m as indented JSON to path.
func WriteBulkExportManifest(m ExportManifest, path string) error {
	if m.ExportedAt.IsZero() {
		m.ExportedAt = time.Now().UTC()
	}
	if m.Playlists == nil {
		m.Playlists = []ManifestEntry{}
	}

	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func formatModified(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
