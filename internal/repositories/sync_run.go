package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

// SyncRunRepository stores the history of reconciliation passes.
type SyncRunRepository struct {
	db *sql.DB
}

var _ models.Model = (*models.SyncRun)(nil)

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

const syncRunColumns = `
	id, sequence, identity, source, status, fetched, created, updated, unchanged,
	skipped, failed, deleted, error_message, started_at, completed_at, created_at, updated_at
`

// Create inserts a new run with generated ID and sequence
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	run.RunID = shared.GenerateID()
	run.Sequence = sequence
	run.RecordedAt = now
	run.ModifiedAt = now
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}

	query := `INSERT INTO sync_runs (` + syncRunColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		run.RunID,
		run.Sequence,
		run.Identity,
		run.Source,
		string(run.Status),
		run.Fetched,
		run.Created,
		run.Updated,
		run.Unchanged,
		run.Skipped,
		run.Failed,
		run.Deleted,
		nullString(run.ErrorMessage),
		run.StartedAt,
		run.CompletedAt,
		run.RecordedAt,
		run.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	return nil
}

// Update writes the counters, status, and completion time of an existing run.
func (r *SyncRunRepository) Update(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	run.ModifiedAt = time.Now()

	query := `
		UPDATE sync_runs
		SET identity = ?, status = ?, fetched = ?, created = ?, updated = ?, unchanged = ?,
			skipped = ?, failed = ?, deleted = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		run.Identity,
		string(run.Status),
		run.Fetched,
		run.Created,
		run.Updated,
		run.Unchanged,
		run.Skipped,
		run.Failed,
		run.Deleted,
		nullString(run.ErrorMessage),
		run.CompletedAt,
		run.ModifiedAt,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync run not found: %s", run.RunID)
	}

	return nil
}

// Get retrieves a run by ID
func (r *SyncRunRepository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = ?`
	return scanSyncRun(r.db.QueryRowContext(ctx, query, id))
}

// Latest returns the most recent run, or nil when no run has been recorded.
func (r *SyncRunRepository) Latest(ctx context.Context) (*models.SyncRun, error) {
	runs, err := r.List(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// List returns up to limit runs, newest first. A limit of zero or less returns every run.
func (r *SyncRunRepository) List(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY sequence DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSyncRun(row scanner) (*models.SyncRun, error) {
	var (
		run          models.SyncRun
		status       string
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&run.RunID, &run.Sequence, &run.Identity, &run.Source, &status,
		&run.Fetched, &run.Created, &run.Updated, &run.Unchanged,
		&run.Skipped, &run.Failed, &run.Deleted, &errorMessage,
		&run.StartedAt, &completedAt, &run.RecordedAt, &run.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.Status = models.SyncStatus(status)
	run.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}

	return &run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
