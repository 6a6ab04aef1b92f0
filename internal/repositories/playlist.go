package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

// PlaylistRepository is the SQLite-backed local playlist store.
//
// Playlists are keyed by uri. Rows are soft-deleted so a uri can be created again after removal.
type PlaylistRepository struct {
	db *sql.DB
}

var _ models.PlaylistStore = (*PlaylistRepository)(nil)

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

type playlistRow struct {
	id           string
	sequence     int
	uri          string
	name         string
	lastModified int64
}

// List returns every live playlist with its tracks, ordered by creation sequence.
func (r *PlaylistRepository) List(ctx context.Context) ([]models.LocalPlaylist, error) {
	query := `
		SELECT id, sequence, uri, name, last_modified
		FROM playlists
		WHERE deleted_at IS NULL
		ORDER BY sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	var found []playlistRow
	for rows.Next() {
		var p playlistRow
		if err := rows.Scan(&p.id, &p.sequence, &p.uri, &p.name, &p.lastModified); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		found = append(found, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	playlists := make([]models.LocalPlaylist, 0, len(found))
	for _, p := range found {
		tracks, err := loadTracks(ctx, r.db, p.id)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, models.LocalPlaylist{
			URI:          p.uri,
			Name:         p.name,
			Tracks:       tracks,
			LastModified: p.lastModified,
		})
	}

	return playlists, nil
}

// Lookup retrieves a live playlist by uri.
func (r *PlaylistRepository) Lookup(ctx context.Context, uri string) (*models.LocalPlaylist, error) {
	p, err := lookupRow(ctx, r.db, uri)
	if err != nil {
		return nil, err
	}

	tracks, err := loadTracks(ctx, r.db, p.id)
	if err != nil {
		return nil, err
	}

	return &models.LocalPlaylist{URI: p.uri, Name: p.name, Tracks: tracks, LastModified: p.lastModified}, nil
}

// Create inserts an empty playlist whose uri and name are both name.
//
// Only names under [models.PlaylistNamespace] are accepted.
func (r *PlaylistRepository) Create(ctx context.Context, name string) (*models.LocalPlaylist, error) {
	if !models.IsManaged(name) {
		return nil, fmt.Errorf("%w: %s", shared.ErrOutsideNamespace, name)
	}

	playlist := models.LocalPlaylist{URI: name, Name: name, LastModified: time.Now().Unix()}
	if err := playlist.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequenceTx(ctx, tx, "playlists")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO playlists (id, sequence, uri, name, last_modified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, shared.GenerateID(), sequence, playlist.URI, playlist.Name, playlist.LastModified, now, now); err != nil {
		return nil, fmt.Errorf("failed to insert playlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit playlist: %w", err)
	}

	return &playlist, nil
}

// Save replaces the name and tracks of an existing playlist.
//
// For recommendation uris a save that does not grow the track list is rejected:
// the stored playlist is returned unchanged with applied set to false.
func (r *PlaylistRepository) Save(ctx context.Context, pl models.LocalPlaylist) (*models.LocalPlaylist, bool, error) {
	if err := pl.Validate(); err != nil {
		return nil, false, fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := lookupRow(ctx, tx, pl.URI)
	if err != nil {
		return nil, false, err
	}

	if models.IsRecommendation(pl.URI) {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ?", current.id).Scan(&count); err != nil {
			return nil, false, fmt.Errorf("failed to count tracks: %w", err)
		}
		if len(pl.Tracks) <= count {
			tracks, err := loadTracks(ctx, tx, current.id)
			if err != nil {
				return nil, false, err
			}
			stored := &models.LocalPlaylist{URI: current.uri, Name: current.name, Tracks: tracks, LastModified: current.lastModified}
			return stored, false, nil
		}
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE playlists SET name = ?, last_modified = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		pl.Name, pl.LastModified, time.Now(), current.id,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update playlist: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return nil, false, fmt.Errorf("failed to get affected rows: %w", err)
	} else if rows == 0 {
		return nil, false, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, pl.URI)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_id = ?", current.id); err != nil {
		return nil, false, fmt.Errorf("failed to clear tracks: %w", err)
	}

	insert := `
		INSERT INTO playlist_tracks (playlist_id, position, track_uri, name, artist, album, mbid, path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, t := range pl.Tracks {
		if _, err := tx.ExecContext(ctx, insert, current.id, i, t.URI, t.Name, t.Artist, t.Album, t.MBID, t.Path); err != nil {
			return nil, false, fmt.Errorf("failed to insert track %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit playlist: %w", err)
	}

	stored := pl
	stored.Tracks = append([]models.LocalTrack(nil), pl.Tracks...)
	return &stored, true, nil
}

// Delete soft-deletes the playlist with the given uri and drops its tracks.
// It returns false when no live playlist had that uri.
func (r *PlaylistRepository) Delete(ctx context.Context, uri string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := lookupRow(ctx, tx, uri)
	if errors.Is(err, shared.ErrPlaylistNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE playlists SET deleted_at = ? WHERE id = ?", time.Now(), current.id); err != nil {
		return false, fmt.Errorf("failed to delete playlist: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_id = ?", current.id); err != nil {
		return false, fmt.Errorf("failed to delete playlist tracks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return true, nil
}

// queryer is satisfied by both [sql.DB] and [sql.Tx].
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lookupRow(ctx context.Context, q queryer, uri string) (*playlistRow, error) {
	query := `
		SELECT id, sequence, uri, name, last_modified
		FROM playlists
		WHERE uri = ? AND deleted_at IS NULL
	`

	var p playlistRow
	err := q.QueryRowContext(ctx, query, uri).Scan(&p.id, &p.sequence, &p.uri, &p.name, &p.lastModified)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return &p, nil
}

func loadTracks(ctx context.Context, q queryer, playlistID string) ([]models.LocalTrack, error) {
	query := `
		SELECT track_uri, name, artist, album, mbid, path
		FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position ASC
	`

	rows, err := q.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.LocalTrack{}
	for rows.Next() {
		var t models.LocalTrack
		if err := rows.Scan(&t.URI, &t.Name, &t.Artist, &t.Album, &t.MBID, &t.Path); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}
