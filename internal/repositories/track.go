package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

// TrackRepository is the local library index populated by the scanner.
type TrackRepository struct {
	db *sql.DB
}

var _ models.TrackSearcher = (*TrackRepository)(nil)

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Upsert inserts a track or refreshes the row with the same uri, stamping it with scannedAt.
func (r *TrackRepository) Upsert(ctx context.Context, track models.LocalTrack, scannedAt time.Time) error {
	if track.URI == "" {
		return fmt.Errorf("validation failed: uri is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	key := shared.NormalizeTrackKey(track.Artist, track.Name)

	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM tracks WHERE uri = ?", track.URI).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		sequence, err := nextSequenceTx(ctx, tx, "tracks")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		query := `
			INSERT INTO tracks (id, sequence, uri, path, title, artist, album, mbid, search_key, scanned_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query,
			shared.GenerateID(), sequence, track.URI, track.Path, track.Name, track.Artist,
			track.Album, track.MBID, key, scannedAt, now, now,
		); err != nil {
			return fmt.Errorf("failed to insert track: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up track: %w", err)
	default:
		query := `
			UPDATE tracks
			SET path = ?, title = ?, artist = ?, album = ?, mbid = ?, search_key = ?, scanned_at = ?, updated_at = ?
			WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, query,
			track.Path, track.Name, track.Artist, track.Album, track.MBID, key, scannedAt, now, id,
		); err != nil {
			return fmt.Errorf("failed to update track: %w", err)
		}
	}

	return tx.Commit()
}

// Lookup retrieves a track by uri.
func (r *TrackRepository) Lookup(ctx context.Context, uri string) (*models.LocalTrack, error) {
	query := `SELECT uri, title, artist, album, mbid, path FROM tracks WHERE uri = ?`

	var t models.LocalTrack
	err := r.db.QueryRowContext(ctx, query, uri).Scan(&t.URI, &t.Name, &t.Artist, &t.Album, &t.MBID, &t.Path)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return &t, nil
}

// Search returns candidate tracks in index order.
//
// When q.MBID is set the search is an exact recording id match. Otherwise the
// keywords in q.Any are fuzzy-matched against "artist title" and the results
// are ranked by edit distance.
func (r *TrackRepository) Search(ctx context.Context, q models.TrackQuery) ([]models.LocalTrack, error) {
	if q.MBID == "" && len(q.Any) == 0 {
		return nil, fmt.Errorf("%w: empty track query", shared.ErrInvalidInput)
	}

	query := `SELECT uri, title, artist, album, mbid, path, search_key FROM tracks WHERE 1 = 1`
	args := []any{}

	if q.MBID != "" {
		query += " AND mbid = ?"
		args = append(args, q.MBID)
	}

	if clause, schemeArgs := schemeClause("uri", q.Schemes); clause != "" {
		query += " AND " + clause
		args = append(args, schemeArgs...)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var (
		tracks []models.LocalTrack
		keys   []string
	)
	for rows.Next() {
		var (
			t   models.LocalTrack
			key string
		)
		if err := rows.Scan(&t.URI, &t.Name, &t.Artist, &t.Album, &t.MBID, &t.Path, &key); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if q.MBID != "" {
		return tracks, nil
	}
	return rankByKeywords(q.Any, tracks, keys), nil
}

// rankByKeywords keeps tracks whose key contains every keyword and orders them by distance to the joined keywords.
func rankByKeywords(keywords []string, tracks []models.LocalTrack, keys []string) []models.LocalTrack {
	var terms []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			terms = append(terms, k)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	needle := shared.NormalizeTrackKey(strings.Join(terms, " "), "")

	ranks := fuzzy.RankFindNormalizedFold(needle, keys)
	sort.Stable(ranks)

	results := make([]models.LocalTrack, 0, len(ranks))
	for _, rank := range ranks {
		matched := true
		for _, term := range terms {
			if !fuzzy.MatchNormalizedFold(term, rank.Target) {
				matched = false
				break
			}
		}
		if matched {
			results = append(results, tracks[rank.OriginalIndex])
		}
	}
	return results
}

// Prune removes tracks under scheme that were last scanned before cutoff and returns how many were removed.
func (r *TrackRepository) Prune(ctx context.Context, scheme string, cutoff time.Time) (int, error) {
	query := `SELECT id, scanned_at FROM tracks`
	args := []any{}
	if clause, schemeArgs := schemeClause("uri", []string{scheme}); scheme != "" {
		query += " WHERE " + clause
		args = append(args, schemeArgs...)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to query tracks: %w", err)
	}

	var stale []string
	for rows.Next() {
		var (
			id        string
			scannedAt time.Time
		)
		if err := rows.Scan(&id, &scannedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan track: %w", err)
		}
		if scannedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, id := range stale {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM tracks WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to delete track: %w", err)
		}
	}
	return len(stale), nil
}

// Count returns the number of indexed tracks.
func (r *TrackRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}
