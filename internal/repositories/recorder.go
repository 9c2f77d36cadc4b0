package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/shared"
)

// LedgerRecorder implements tasks.OutcomeRecorder using the run and outcome repositories.
//
// Re-recording the same ordinal for a run is ignored (UNIQUE constraint on run_id, ordinal).
type LedgerRecorder struct {
	runs     *RunRepository
	outcomes *OutcomeRepository
}

// NewLedgerRecorder creates a new LedgerRecorder with the given repositories
func NewLedgerRecorder(runs *RunRepository, outcomes *OutcomeRepository) *LedgerRecorder {
	return &LedgerRecorder{runs: runs, outcomes: outcomes}
}

// StartRun persists a new running run and returns it with its ID and sequence set.
func (a *LedgerRecorder) StartRun(sourceURL, playlistName string) (*models.SyncRun, error) {
	run := models.NewSyncRun(0, sourceURL, playlistName)
	if err := a.runs.Create(run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// RecordOutcome persists one track outcome of run runID.
func (a *LedgerRecorder) RecordOutcome(runID string, entry models.LogEntry) error {
	existing, err := a.outcomes.GetByOrdinal(runID, entry.Ordinal)
	if err == nil && existing != nil {
		return nil
	}
	if err != nil && !errors.Is(err, shared.ErrRecordNotFound) {
		return err
	}

	if err := a.outcomes.Create(models.NewTrackOutcome(runID, entry)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// FinishRun writes the run's final status and counters.
func (a *LedgerRecorder) FinishRun(run *models.SyncRun) error {
	return a.runs.Update(run)
}
