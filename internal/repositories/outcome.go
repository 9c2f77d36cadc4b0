package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/shared"
)

const outcomeColumns = `
	id, run_id, ordinal, title, source_url, match_kind, outcome,
	upload_error, detail, created_at, updated_at
`

// OutcomeRepository implements models.Repository[*models.TrackOutcome].
//
// Outcomes are unique per (run_id, ordinal); deleting a run cascades to its outcomes.
type OutcomeRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.TrackOutcome] = (*OutcomeRepository)(nil)

// NewOutcomeRepository creates a new OutcomeRepository with the given database connection
func NewOutcomeRepository(db *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Create inserts a new outcome with a generated ID
func (r *OutcomeRepository) Create(outcome *models.TrackOutcome) error {
	outcome.SetID(shared.GenerateID())

	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO track_outcomes (` + outcomeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		outcome.ID(),
		outcome.RunID(),
		outcome.Ordinal(),
		outcome.Title(),
		outcome.SourceURL(),
		outcome.Match().String(),
		outcome.Outcome().String(),
		outcome.UploadError().String(),
		outcome.Detail(),
		outcome.CreatedAt(),
		outcome.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// Get retrieves an outcome by ID
func (r *OutcomeRepository) Get(id string) (*models.TrackOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM track_outcomes WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// GetByOrdinal retrieves the outcome recorded for ordinal in run runID
func (r *OutcomeRepository) GetByOrdinal(runID string, ordinal int) (*models.TrackOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM track_outcomes WHERE run_id = ? AND ordinal = ?`
	return r.scan(r.db.QueryRow(query, runID, ordinal))
}

// Update rewrites the stored detail of an outcome
func (r *OutcomeRepository) Update(outcome *models.TrackOutcome) error {
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	outcome.SetUpdatedAt(now)

	result, err := r.db.Exec(`UPDATE track_outcomes SET detail = ?, updated_at = ? WHERE id = ?`,
		outcome.Detail(), now, outcome.ID())
	if err != nil {
		return fmt.Errorf("failed to update outcome: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: outcome %s", shared.ErrRecordNotFound, outcome.ID())
	}
	return nil
}

// List retrieves outcomes in run and ordinal order.
//
// Supported criteria: "run_id" (string) and "outcome" (string, e.g. "upload_failed").
func (r *OutcomeRepository) List(criteria map[string]any) ([]*models.TrackOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM track_outcomes WHERE 1 = 1`
	args := []any{}

	if runID, ok := criteria["run_id"].(string); ok && runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}

	if outcome, ok := criteria["outcome"].(string); ok && outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}

	query += " ORDER BY run_id, ordinal"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.TrackOutcome
	for rows.Next() {
		outcome, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return outcomes, nil
}

// ListByRun retrieves the outcomes of a single run in playlist order
func (r *OutcomeRepository) ListByRun(runID string) ([]*models.TrackOutcome, error) {
	return r.List(map[string]any{"run_id": runID})
}

func (r *OutcomeRepository) scan(row scanner) (*models.TrackOutcome, error) {
	var (
		id, runID, title, sourceURL, match, outcome, uploadErr, detail string
		ordinal                                                        int
		createdAt, updatedAt                                           time.Time
	)

	err := row.Scan(&id, &runID, &ordinal, &title, &sourceURL, &match, &outcome, &uploadErr, &detail, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: outcome", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}

	kind, ok := models.ParseOutcome(outcome)
	if !ok {
		return nil, fmt.Errorf("%w: unknown outcome %q", shared.ErrInvalidInput, outcome)
	}

	entry := models.LogEntry{
		Ordinal:     ordinal,
		Title:       title,
		SourceURL:   sourceURL,
		Match:       models.ParseMatchKind(match),
		Outcome:     kind,
		UploadError: models.ParseUploadErrorKind(uploadErr),
	}
	result := models.NewTrackOutcome(runID, entry)
	result.SetID(id)
	result.SetDetail(detail)
	result.SetCreatedAt(createdAt)
	result.SetUpdatedAt(updatedAt)
	return result, nil
}
