// Package models defines the domain entities of the playlist synchronizer.
//
// The package contains two categories of types:
//
// 1. Pipeline values: immutable-ish structs passed between pipeline stages
//   - [TrackDescriptor] : one source playlist entry (ordinal, title, source URL)
//   - [MatchResult] : sealed sum of [NoMatch], [CatalogTrack] and [NonTrackHit]
//   - [PlaylistHandle] : the resolved destination playlist; its revision is never cached here
//   - [UploadTarget] / [UploadReceipt] : single-use upload URL and the service's verbatim reply
//   - [LogEntry] : the one outcome recorded for each ordinal
//
// 2. Persistent Entities: ledger rows with full lifecycle management
//   - [SyncRun] : one synchronizer invocation with counters and status
//   - [TrackOutcome] : a persisted [LogEntry]
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
