package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/services"
	"github.com/desertthunder/yms/internal/shared"
)

// RunParams are the entry parameters of a run.
type RunParams struct {
	SourceURL    string
	PlaylistName string
	Window       models.Window
}

// RunResult contains everything a finished (or aborted) run produced.
type RunResult struct {
	Run      *models.SyncRun
	Playlist models.PlaylistHandle
	Created  bool              // destination playlist was created by this run
	Entries  []models.LogEntry // one per track, in playlist order
}

// Uploader submits fetched files to an upload target.
type Uploader interface {
	Upload(ctx context.Context, path string, target models.UploadTarget) (*models.UploadReceipt, error)
}

// OutcomeRecorder persists runs and their per-track outcomes.
//
// Recording failures are logged and never abort a run.
type OutcomeRecorder interface {
	StartRun(sourceURL, playlistName string) (*models.SyncRun, error)
	RecordOutcome(runID string, entry models.LogEntry) error
	FinishRun(run *models.SyncRun) error
}

// SyncEngine defines the synchronization operations.
type SyncEngine interface {
	// Run extracts the source playlist and, for each track: normalize → match → insert, or fetch → upload.
	Run(ctx context.Context, params RunParams, progress chan<- ProgressUpdate) (*RunResult, error)

	// Match normalizes rawTitle and classifies the catalog's best hit without touching any playlist.
	Match(ctx context.Context, rawTitle string) (string, models.MatchResult, error)
}

// EngineOpts are the collaborators of a [PlaylistEngine]. Journal and Recorder are optional.
type EngineOpts struct {
	Catalog        services.Catalog
	Source         services.Source
	Uploader       Uploader
	Journal        *Journal
	Recorder       OutcomeRecorder
	SourceConfig   shared.SourceConfig
	InsertAttempts int
	KeepFiles      bool
	Logger         *log.Logger
}

// PlaylistEngine implements [SyncEngine].
type PlaylistEngine struct {
	catalog   services.Catalog
	source    services.Source
	uploader  Uploader
	matcher   *Matcher
	mutator   *PlaylistMutator
	acquirer  *Acquirer
	journal   *Journal
	recorder  OutcomeRecorder
	keepFiles bool
	logger    *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided collaborators.
func NewPlaylistEngine(opts EngineOpts) *PlaylistEngine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{
		catalog:   opts.Catalog,
		source:    opts.Source,
		uploader:  opts.Uploader,
		matcher:   NewMatcher(opts.Catalog),
		mutator:   NewPlaylistMutator(opts.Catalog, opts.InsertAttempts, logger),
		acquirer:  NewAcquirer(opts.Source, opts.SourceConfig, logger),
		journal:   opts.Journal,
		recorder:  opts.Recorder,
		keepFiles: opts.KeepFiles,
		logger:    shared.WithLogger(logger, "component", "engine"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Match normalizes rawTitle and classifies the best catalog hit for it.
func (e *PlaylistEngine) Match(ctx context.Context, rawTitle string) (string, models.MatchResult, error) {
	clean := searchTitle(rawTitle)
	result, err := e.matcher.Match(ctx, clean)
	return clean, result, err
}

// searchTitle is the normalized title, or the trimmed raw title when normalization leaves nothing.
func searchTitle(raw string) string {
	if clean := shared.NormalizeTitle(raw); clean != "" {
		return clean
	}
	return strings.Join(strings.Fields(raw), " ")
}

// Run performs a full synchronization.
//
// Per-track failures become outcomes. Only extraction, playlist resolution, journal failures and cancellation
// abort the run; the partial result is returned alongside the error.
func (e *PlaylistEngine) Run(ctx context.Context, params RunParams, progress chan<- ProgressUpdate) (*RunResult, error) {
	switch {
	case e.catalog == nil:
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	case e.source == nil:
		return nil, fmt.Errorf("%w: source not initialized", shared.ErrServiceUnavailable)
	case e.uploader == nil:
		return nil, fmt.Errorf("%w: uploader not initialized", shared.ErrServiceUnavailable)
	case strings.TrimSpace(params.SourceURL) == "":
		return nil, fmt.Errorf("%w: source playlist URL", shared.ErrMissingArgument)
	case strings.TrimSpace(params.PlaylistName) == "":
		return nil, fmt.Errorf("%w: destination playlist name", shared.ErrMissingArgument)
	}

	result := &RunResult{Run: e.startRun(params)}
	err := e.run(ctx, params, result, progress)
	e.finishRun(result, err)
	e.sendProgress(progress, finishedUpdate(result.Run))
	return result, err
}

func (e *PlaylistEngine) run(ctx context.Context, params RunParams, result *RunResult, progress chan<- ProgressUpdate) error {
	e.sendProgress(progress, extractingUpdate(params.SourceURL))
	tracks, err := e.source.Extract(ctx, params.SourceURL, params.Window)
	if err != nil {
		return fmt.Errorf("failed to extract source playlist: %w", err)
	}
	total := len(tracks)
	result.Run.SetCounts(total, 0, 0, 0)
	e.sendProgress(progress, extractedUpdate(total))

	e.sendProgress(progress, resolvingUpdate(params.PlaylistName))
	handle, created, err := e.mutator.Resolve(ctx, params.PlaylistName)
	if err != nil {
		return fmt.Errorf("failed to resolve playlist %q: %w", params.PlaylistName, err)
	}
	result.Playlist, result.Created = handle, created
	result.Run.SetPlaylistID(handle.ID)
	if created {
		if err := e.note(fmt.Sprintf("Создан новый плейлист: %s", handle.Name)); err != nil {
			return err
		}
	}
	e.sendProgress(progress, resolvedUpdate(handle, created))

	result.Entries = make([]models.LogEntry, 0, total)
	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.sendProgress(progress, trackStartedUpdate(i+1, total, track))
		entry := e.processTrack(ctx, handle, track)

		if err := e.record(result, entry); err != nil {
			return err
		}
		e.sendProgress(progress, trackDoneUpdate(i+1, total, entry))
	}
	return nil
}

// processTrack runs normalize → match → insert | fetch → upload and never returns an error: every failure
// is folded into the entry.
func (e *PlaylistEngine) processTrack(ctx context.Context, handle models.PlaylistHandle, track models.TrackDescriptor) models.LogEntry {
	clean := searchTitle(track.Title)
	entry := models.LogEntry{Ordinal: track.Ordinal, Title: clean, SourceURL: track.SourceURL}

	match, err := e.matcher.Match(ctx, clean)
	if err != nil {
		entry.Outcome = models.OutcomeSearchFailed
		entry.Err = err
		return entry
	}
	entry.Match = match.Kind()

	if catalogTrack, ok := match.(models.CatalogTrack); ok {
		if err := e.mutator.Insert(ctx, handle, catalogTrack); err != nil {
			entry.Outcome = models.OutcomeInsertFailed
			entry.Err = err
			return entry
		}
		entry.Outcome = models.OutcomeInserted
		entry.PlaylistID = handle.ID
		return entry
	}

	return e.fallback(ctx, handle, entry)
}

// fallback fetches the source audio and uploads it once the fetch completion arrives. A successful upload is
// then inserted into the playlist under the track id the upload target was issued with.
func (e *PlaylistEngine) fallback(ctx context.Context, handle models.PlaylistHandle, entry models.LogEntry) models.LogEntry {
	completion := <-e.acquirer.Fetch(ctx, entry.SourceURL, entry.Title)
	if completion.Err != nil {
		entry.Outcome = models.OutcomeFetchFailed
		entry.Err = completion.Err
		return entry
	}
	if !e.keepFiles {
		defer e.removeFile(completion.Path)
	}

	target, err := e.catalog.UploadTarget(ctx, entry.Title, handle.ID)
	if err != nil {
		entry.Outcome = models.OutcomeUploadFailed
		entry.UploadError = models.UploadErrTarget
		entry.Err = err
		return entry
	}

	receipt, err := e.uploader.Upload(ctx, completion.Path, *target)
	if err != nil {
		entry.Outcome = models.OutcomeUploadFailed
		entry.UploadError = models.UploadErrTransport
		entry.Err = err

		var uploadErr *services.UploadError
		if errors.As(err, &uploadErr) {
			entry.UploadError = uploadErr.Kind
		}
		return entry
	}

	entry.Response = receipt.Body
	if err := e.link(ctx, handle, *target); err != nil {
		e.logger.Warn("uploaded track not linked", "ordinal", entry.Ordinal, "title", entry.Title, "err", err)
		entry.Outcome = models.OutcomeUploadUnlinked
		entry.Err = err
		return entry
	}
	entry.Outcome = models.OutcomeUploaded
	entry.PlaylistID = handle.ID
	return entry
}

// link inserts an uploaded track into the playlist with a freshly fetched revision.
func (e *PlaylistEngine) link(ctx context.Context, handle models.PlaylistHandle, target models.UploadTarget) error {
	if target.TrackID == "" {
		return fmt.Errorf("%w: upload target carried no track id", shared.ErrInsertRejected)
	}
	return e.mutator.Insert(ctx, handle, models.CatalogTrack{ID: target.TrackID})
}

func (e *PlaylistEngine) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("failed to remove fetched file", "path", path, "err", err)
	}
}

// record writes entry to the journal and the ledger and updates the counters.
func (e *PlaylistEngine) record(result *RunResult, entry models.LogEntry) error {
	if e.journal != nil {
		if err := e.journal.Record(entry); err != nil {
			return err
		}
	}
	result.Entries = append(result.Entries, entry)

	run := result.Run
	inserted, uploaded, failed := run.Inserted(), run.Uploaded(), run.Failed()
	switch entry.Outcome {
	case models.OutcomeInserted:
		inserted++
	case models.OutcomeUploaded:
		uploaded++
	default:
		failed++
	}
	run.SetCounts(run.Total(), inserted, uploaded, failed)

	if e.recorder != nil {
		if err := e.recorder.RecordOutcome(run.ID(), entry); err != nil {
			e.logger.Warn("failed to record outcome", "ordinal", entry.Ordinal, "err", err)
		}
	}

	e.logger.Debug("track processed", "ordinal", entry.Ordinal, "title", entry.Title, "outcome", entry.Outcome)
	return nil
}

func (e *PlaylistEngine) note(line string) error {
	if e.journal == nil {
		return nil
	}
	return e.journal.Note(line)
}

func (e *PlaylistEngine) startRun(params RunParams) *models.SyncRun {
	if e.recorder != nil {
		run, err := e.recorder.StartRun(params.SourceURL, params.PlaylistName)
		if err == nil {
			return run
		}
		e.logger.Warn("failed to record run start", "err", err)
	}
	run := models.NewSyncRun(0, params.SourceURL, params.PlaylistName)
	run.SetID(shared.GenerateID())
	return run
}

func (e *PlaylistEngine) finishRun(result *RunResult, err error) {
	result.Run.Finish(err)
	if e.recorder == nil {
		return
	}
	if recErr := e.recorder.FinishRun(result.Run); recErr != nil {
		e.logger.Warn("failed to record run finish", "run", result.Run.ID(), "err", recErr)
	}
}
