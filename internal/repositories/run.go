package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/shared"
)

const runColumns = `
	id, sequence, source_url, playlist_name, playlist_id, status,
	total_tracks, inserted, uploaded, failed, error,
	started_at, finished_at, created_at, updated_at
`

// RunRepository implements models.Repository[*models.SyncRun] for the run ledger.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.SyncRun] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with generated ID and sequence
func (r *RunRepository) Create(run *models.SyncRun) error {
	sequence, err := NextSequence(r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO sync_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		run.ID(),
		run.Sequence(),
		run.SourceURL(),
		run.PlaylistName(),
		run.PlaylistID(),
		string(run.Status()),
		run.Total(),
		run.Inserted(),
		run.Uploaded(),
		run.Failed(),
		run.Error(),
		run.StartedAt(),
		run.FinishedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a run by its human-readable sequence number
func (r *RunRepository) GetBySequence(sequence int) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE sequence = ?`
	return r.scan(r.db.QueryRow(query, sequence))
}

// Find resolves a run reference typed by a user: a sequence number, "latest", or a full ID.
func (r *RunRepository) Find(ref string) (*models.SyncRun, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "" || ref == "latest":
		return r.Latest()
	default:
		if seq, err := strconv.Atoi(ref); err == nil {
			return r.GetBySequence(seq)
		}
		return r.Get(ref)
	}
}

// Latest returns the most recently started run
func (r *RunRepository) Latest() (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs ORDER BY sequence DESC LIMIT 1`
	return r.scan(r.db.QueryRow(query))
}

// Update writes the run's counters, status and timestamps
func (r *RunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE sync_runs
		SET playlist_id = ?, status = ?, total_tracks = ?, inserted = ?, uploaded = ?,
			failed = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		run.PlaylistID(),
		string(run.Status()),
		run.Total(),
		run.Inserted(),
		run.Uploaded(),
		run.Failed(),
		run.Error(),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run %s", shared.ErrRecordNotFound, run.ID())
	}
	return nil
}

// List retrieves runs newest first.
//
// Supported criteria: "status" (string), "source_url" (string) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE 1 = 1`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if sourceURL, ok := criteria["source_url"].(string); ok && sourceURL != "" {
		query += " AND source_url = ?"
		args = append(args, sourceURL)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := r.scan(rows)
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

// scan reads a single row from either [sql.Row] or [sql.Rows]
func (r *RunRepository) scan(row scanner) (*models.SyncRun, error) {
	var (
		id, sourceURL, playlistName, playlistID, status, errMsg string
		sequence, total, inserted, uploaded, failed             int
		startedAt, createdAt, updatedAt                         time.Time
		finishedAt                                              sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &sourceURL, &playlistName, &playlistID, &status,
		&total, &inserted, &uploaded, &failed, &errMsg,
		&startedAt, &finishedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewSyncRun(sequence, sourceURL, playlistName)
	run.SetID(id)
	run.SetPlaylistID(playlistID)
	run.SetStatus(models.RunStatus(status), errMsg)
	run.SetCounts(total, inserted, uploaded, failed)

	var finished *time.Time
	if finishedAt.Valid {
		finished = &finishedAt.Time
	}
	run.SetTimes(startedAt, createdAt, finished)
	run.SetUpdatedAt(updatedAt)
	return run, nil
}

// scanner is the common surface of [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}
