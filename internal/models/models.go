package models

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// PlaylistNamespace prefixes every playlist URI managed by lbx.
	PlaylistNamespace = "listenbrainz:playlist"
	// RecommendationNamespace prefixes playlists mirrored from the "created for" listing.
	RecommendationNamespace = PlaylistNamespace + ":recommendation"
	// LocalScheme prefixes tracks discovered by the library scanner.
	LocalScheme = "local:"
)

// Model defines the base interface for persistent records.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// RecommendationURI returns the namespaced URI for a remote playlist id.
func RecommendationURI(playlistID string) string {
	return RecommendationNamespace + ":" + playlistID
}

// IsManaged reports whether uri belongs to the lbx playlist namespace.
func IsManaged(uri string) bool {
	return uri == PlaylistNamespace || strings.HasPrefix(uri, PlaylistNamespace+":")
}

// IsRecommendation reports whether uri belongs to the recommendation sub-namespace.
func IsRecommendation(uri string) bool {
	return strings.HasPrefix(uri, RecommendationNamespace+":")
}

// PlaylistData is a recommendation playlist parsed from a detail response.
// TrackMBIDs preserves remote order and holds one recording id per track position.
type PlaylistData struct {
	PlaylistID   string   `json:"playlist_id"`
	Name         string   `json:"name"`
	TrackMBIDs   []string `json:"track_mbids"`
	LastModified int64    `json:"last_modified"`
}

// URI returns the local identity of the playlist.
func (p PlaylistData) URI() string {
	return RecommendationURI(p.PlaylistID)
}

// LocalTrack is a track handle from the local library index.
type LocalTrack struct {
	URI    string `json:"uri"`
	Name   string `json:"name"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	MBID   string `json:"mbid,omitempty"`
	Path   string `json:"path,omitempty"`
}

// String renders the track for log lines.
func (t LocalTrack) String() string {
	if t.Artist == "" {
		return t.Name
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Name)
}

// LocalPlaylist is a playlist held by the local store.
type LocalPlaylist struct {
	URI          string       `json:"uri"`
	Name         string       `json:"name"`
	Tracks       []LocalTrack `json:"tracks"`
	LastModified int64        `json:"last_modified"`
}

// Validate checks the playlist has an identity.
func (p LocalPlaylist) Validate() error {
	if p.URI == "" {
		return fmt.Errorf("uri is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// ListenEvent is a single submission to the listen endpoint.
// ListenedAt is ignored when NowPlaying is set.
type ListenEvent struct {
	TrackName   string
	ArtistName  string
	ReleaseName string
	MBID        string
	NowPlaying  bool
	ListenedAt  int64
}

// Valid reports whether the event carries the fields the remote requires.
func (e ListenEvent) Valid() bool {
	return strings.TrimSpace(e.TrackName) != "" && strings.TrimSpace(e.ArtistName) != ""
}

// Playback describes a track reported by a player on start or end.
type Playback struct {
	URI      string   `json:"uri"`
	Name     string   `json:"name"`
	Artists  []string `json:"artists"`
	Album    string   `json:"album"`
	MBID     string   `json:"mbid"`
	Duration int      `json:"duration"` // whole seconds
}

// TrackQuery searches the library index either by recording MBID or by keywords.
// An empty Schemes slice searches every scheme.
type TrackQuery struct {
	MBID    string
	Any     []string
	Schemes []string
}

// SyncStatus describes how a reconciliation pass ended.
type SyncStatus string

const (
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncRun records the outcome of a single reconciliation pass.
type SyncRun struct {
	RunID        string     `json:"id"`
	Sequence     int        `json:"sequence"`
	Identity     string     `json:"identity"`
	Source       string     `json:"source"`
	Status       SyncStatus `json:"status"`
	Fetched      int        `json:"fetched"`
	Created      int        `json:"created"`
	Updated      int        `json:"updated"`
	Unchanged    int        `json:"unchanged"`
	Skipped      int        `json:"skipped"`
	Failed       int        `json:"failed"`
	Deleted      int        `json:"deleted"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RecordedAt   time.Time  `json:"created_at"`
	ModifiedAt   time.Time  `json:"updated_at"`
}

func (r *SyncRun) ID() string           { return r.RunID }
func (r *SyncRun) CreatedAt() time.Time { return r.RecordedAt }
func (r *SyncRun) UpdatedAt() time.Time { return r.ModifiedAt }

// Validate checks required fields and that counters are non-negative.
func (r *SyncRun) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("source is required")
	}
	switch r.Status {
	case SyncRunning, SyncCompleted, SyncFailed:
	default:
		return fmt.Errorf("invalid status %q", r.Status)
	}
	for _, n := range []int{r.Fetched, r.Created, r.Updated, r.Unchanged, r.Skipped, r.Failed, r.Deleted} {
		if n < 0 {
			return fmt.Errorf("counts must be non-negative")
		}
	}
	return nil
}

// Imported is the number of playlists created or grown by the pass.
func (r *SyncRun) Imported() int {
	return r.Created + r.Updated
}

// Duration returns how long the run took, or zero while it is running.
func (r *SyncRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// PlaylistStore is the local playlist storage collaborator.
//
// Save returns the playlist as stored afterwards; applied is false when the store kept its current version.
type PlaylistStore interface {
	List(ctx context.Context) ([]LocalPlaylist, error)
	Lookup(ctx context.Context, uri string) (*LocalPlaylist, error)
	Create(ctx context.Context, name string) (*LocalPlaylist, error)
	Save(ctx context.Context, pl LocalPlaylist) (stored *LocalPlaylist, applied bool, err error)
	Delete(ctx context.Context, uri string) (bool, error)
}

// TrackSearcher is the local library search collaborator. Results are ordered candidates.
type TrackSearcher interface {
	Search(ctx context.Context, q TrackQuery) ([]LocalTrack, error)
}
