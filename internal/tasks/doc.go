// Package tasks synchronizes a source playlist into a destination playlist with real-time progress reporting.
//
// # Core Operations
//
// The [SyncEngine] interface defines two operations:
//
//  1. [SyncEngine.Run] : full source → destination synchronization
//     - Extracts the source playlist (optionally a skip/count window of it)
//     - Resolves the destination playlist by exact name, creating it when absent
//     - For each track, in order: normalize → match → insert, or fetch → upload
//     - Records exactly one outcome per track in the [Journal] and the optional [OutcomeRecorder]
//
//  2. [SyncEngine.Match] : normalize a title and classify the catalog's best hit, for diagnosing recall
//
// # Components
//
//   - [Matcher] : takes only the single best search result; tracks become [models.CatalogTrack], other entity
//     types [models.NonTrackHit], an empty result [models.NoMatch]
//   - [PlaylistMutator] : fetches the playlist revision immediately before every insert, never caching it
//   - [Acquirer] : fetches source audio with bounded retries and delivers one [FetchCompletion] on a channel;
//     receiving it is what triggers the upload
//   - [Journal] : append-only human-readable log, one line per track, mirrored to the console
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Error Handling
//
// Search, insert, fetch and upload failures are caught at the track boundary and become outcomes.
// Only extraction, playlist resolution, journal writes and cancellation abort a run.
package tasks
