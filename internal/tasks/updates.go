package tasks

import (
	"fmt"

	"github.com/desertthunder/yms/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ExtractPlaylist Phase = iota
	ResolvePlaylist
	ProcessTracks
	FinishRun
)

func (p Phase) String() string {
	switch p {
	case ExtractPlaylist:
		return "extract_playlist"
	case ResolvePlaylist:
		return "resolve_playlist"
	case ProcessTracks:
		return "process_tracks"
	case FinishRun:
		return "finish_run"
	default:
		return ""
	}
}

func extractingUpdate(url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractPlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Extracting source playlist (%s)...", url),
	}
}

func extractedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d tracks", total),
	}
}

func resolvingUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Resolving destination playlist (%s)...", name),
	}
}

func resolvedUpdate(handle models.PlaylistHandle, created bool) ProgressUpdate {
	msg := fmt.Sprintf("Using playlist: %s (ID: %s)", handle.Name, handle.ID)
	if created {
		msg = fmt.Sprintf("Playlist created: %s (ID: %s)", handle.Name, handle.ID)
	}
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    handle,
	}
}

func trackStartedUpdate(step, total int, tr models.TrackDescriptor) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ProcessTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, tr.Title),
	}
}

func trackDoneUpdate(step, total int, entry models.LogEntry) ProgressUpdate {
	mark := "✓"
	if entry.Outcome.Failed() {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   ProcessTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s (%s)", step, total, mark, entry.Title, entry.Outcome),
		Data:    entry,
	}
}

func finishedUpdate(run *models.SyncRun) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FinishRun,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Run %s: %d inserted, %d uploaded, %d failed", run.Status(), run.Inserted(), run.Uploaded(), run.Failed()),
		Data:    run,
	}
}
