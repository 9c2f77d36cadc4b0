package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// SyncRun is the persisted record of one synchronizer invocation.
type SyncRun struct {
	id           string
	sequence     int
	sourceURL    string
	playlistName string
	playlistID   string
	status       RunStatus
	total        int
	inserted     int
	uploaded     int
	failed       int
	errMsg       string
	startedAt    time.Time
	finishedAt   *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewSyncRun creates a running [SyncRun] started now.
func NewSyncRun(sequence int, sourceURL, playlistName string) *SyncRun {
	now := time.Now()
	return &SyncRun{
		sequence:     sequence,
		sourceURL:    sourceURL,
		playlistName: playlistName,
		status:       RunRunning,
		startedAt:    now,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (r *SyncRun) ID() string              { return r.id }
func (r *SyncRun) Sequence() int           { return r.sequence }
func (r *SyncRun) SourceURL() string       { return r.sourceURL }
func (r *SyncRun) PlaylistName() string    { return r.playlistName }
func (r *SyncRun) PlaylistID() string      { return r.playlistID }
func (r *SyncRun) Status() RunStatus       { return r.status }
func (r *SyncRun) Total() int              { return r.total }
func (r *SyncRun) Inserted() int           { return r.inserted }
func (r *SyncRun) Uploaded() int           { return r.uploaded }
func (r *SyncRun) Failed() int             { return r.failed }
func (r *SyncRun) Error() string           { return r.errMsg }
func (r *SyncRun) StartedAt() time.Time    { return r.startedAt }
func (r *SyncRun) FinishedAt() *time.Time  { return r.finishedAt }
func (r *SyncRun) CreatedAt() time.Time    { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time    { return r.updatedAt }
func (r *SyncRun) SetID(id string)         { r.id = id }
func (r *SyncRun) SetSequence(seq int)     { r.sequence = seq }
func (r *SyncRun) SetPlaylistID(id string) { r.playlistID = id }
func (r *SyncRun) SetUpdatedAt(t time.Time) {
	r.updatedAt = t
}

// SetTimes restores timestamps read back from storage.
func (r *SyncRun) SetTimes(started, created time.Time, finished *time.Time) {
	r.startedAt = started
	r.createdAt = created
	r.finishedAt = finished
}

// SetCounts restores or updates the outcome counters.
func (r *SyncRun) SetCounts(total, inserted, uploaded, failed int) {
	r.total, r.inserted, r.uploaded, r.failed = total, inserted, uploaded, failed
}

// SetStatus sets the status and the error text of a run.
func (r *SyncRun) SetStatus(status RunStatus, errMsg string) {
	r.status = status
	r.errMsg = errMsg
}

// Finish marks the run as completed, or aborted when err is non-nil.
func (r *SyncRun) Finish(err error) {
	now := time.Now()
	r.finishedAt = &now
	r.updatedAt = now
	if err != nil {
		r.SetStatus(RunAborted, err.Error())
		return
	}
	r.SetStatus(RunCompleted, "")
}

// Validate checks required fields.
func (r *SyncRun) Validate() error {
	switch {
	case r.id == "":
		return fmt.Errorf("run id is required")
	case r.sourceURL == "":
		return fmt.Errorf("source url is required")
	case r.playlistName == "":
		return fmt.Errorf("playlist name is required")
	case r.status == "":
		return fmt.Errorf("status is required")
	}
	return nil
}

// TrackOutcome is a persisted [LogEntry].
type TrackOutcome struct {
	id        string
	runID     string
	entry     LogEntry
	detail    string
	createdAt time.Time
	updatedAt time.Time
}

// NewTrackOutcome wraps entry for storage under runID.
func NewTrackOutcome(runID string, entry LogEntry) *TrackOutcome {
	now := time.Now()
	return &TrackOutcome{
		runID:     runID,
		entry:     entry,
		detail:    entry.Detail(),
		createdAt: now,
		updatedAt: now,
	}
}

func (o *TrackOutcome) ID() string                   { return o.id }
func (o *TrackOutcome) RunID() string                { return o.runID }
func (o *TrackOutcome) Ordinal() int                 { return o.entry.Ordinal }
func (o *TrackOutcome) Title() string                { return o.entry.Title }
func (o *TrackOutcome) SourceURL() string            { return o.entry.SourceURL }
func (o *TrackOutcome) Match() MatchKind             { return o.entry.Match }
func (o *TrackOutcome) Outcome() Outcome             { return o.entry.Outcome }
func (o *TrackOutcome) UploadError() UploadErrorKind { return o.entry.UploadError }
func (o *TrackOutcome) Detail() string               { return o.detail }
func (o *TrackOutcome) CreatedAt() time.Time         { return o.createdAt }
func (o *TrackOutcome) UpdatedAt() time.Time         { return o.updatedAt }
func (o *TrackOutcome) SetID(id string)              { o.id = id }
func (o *TrackOutcome) SetDetail(detail string)      { o.detail = detail }
func (o *TrackOutcome) SetUpdatedAt(t time.Time)     { o.updatedAt = t }
func (o *TrackOutcome) SetCreatedAt(t time.Time)     { o.createdAt = t }

// Validate checks required fields.
func (o *TrackOutcome) Validate() error {
	switch {
	case o.id == "":
		return fmt.Errorf("outcome id is required")
	case o.runID == "":
		return fmt.Errorf("run id is required")
	case o.entry.Ordinal < 0:
		return fmt.Errorf("ordinal must not be negative")
	}
	return nil
}
