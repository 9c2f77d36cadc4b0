// Package repositories implements the SQLite run ledger.
//
// Every synchronizer run is a row in sync_runs and every processed track a row in track_outcomes.
//
// Key Implementations:
//   - [RunRepository] : run persistence with sequence-based lookups ("yms history export --run 3")
//   - [OutcomeRepository] : per-track outcomes, unique per run and ordinal
//   - [LedgerRecorder] : adapter satisfying tasks.OutcomeRecorder
//
// Sequence numbers provide stable, human-readable run numbers independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
