package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/services"
	"github.com/desertthunder/yms/internal/shared"
	th "github.com/desertthunder/yms/internal/testing"
)

// uploadServer accepts multipart uploads and replies with a fixed JSON body.
type uploadServer struct {
	*httptest.Server
	mu        sync.Mutex
	filenames []string
	status    int
}

func newUploadServer(t *testing.T, status int) *uploadServer {
	t.Helper()
	s := &uploadServer{status: status}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, header, err := r.FormFile("file"); err == nil {
			s.mu.Lock()
			s.filenames = append(s.filenames, header.Filename)
			s.mu.Unlock()
		}
		s.mu.Lock()
		status := s.status
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"result":"CREATED"}`))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *uploadServer) uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filenames)
}

func testUploader() *services.Uploader {
	return services.NewUploader(shared.UploadConfig{
		Timeout:       shared.Duration{Duration: 2 * time.Second},
		RetryMax:      3,
		BackoffFactor: shared.Duration{Duration: time.Millisecond},
		RetryStatuses: []int{500, 501, 502, 503, 504},
	}, quietLogger())
}

type engineFixture struct {
	catalog  *th.MockCatalog
	source   *th.MockSource
	server   *uploadServer
	journal  string
	opts     EngineOpts
	recorder *recordingRecorder
}

func newEngineFixture(t *testing.T, tracks []models.TrackDescriptor) *engineFixture {
	t.Helper()
	server := newUploadServer(t, http.StatusOK)
	f := &engineFixture{
		catalog:  &th.MockCatalog{Hits: map[string]*services.SearchHit{}, TargetURL: server.URL},
		source:   &th.MockSource{Tracks: tracks, FetchErrs: map[string][]error{}},
		server:   server,
		journal:  filepath.Join(t.TempDir(), "log.txt"),
		recorder: &recordingRecorder{},
	}
	f.opts = EngineOpts{
		Catalog:        f.catalog,
		Source:         f.source,
		Uploader:       testUploader(),
		Recorder:       f.recorder,
		SourceConfig:   shared.SourceConfig{OutputDir: t.TempDir(), Extension: "m4a", FetchAttempts: 2},
		InsertAttempts: 1,
		Logger:         quietLogger(),
	}
	return f
}

func (f *engineFixture) engine(t *testing.T) *PlaylistEngine {
	t.Helper()
	journal, err := OpenJournal(f.journal, nil)
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	t.Cleanup(func() { journal.Close() })
	opts := f.opts
	opts.Journal = journal
	return NewPlaylistEngine(opts)
}

// recordingRecorder is an in-memory [OutcomeRecorder].
type recordingRecorder struct {
	started  int
	finished []*models.SyncRun
	outcomes []models.LogEntry
	runIDs   []string
	failAll  bool
}

func (r *recordingRecorder) StartRun(sourceURL, playlistName string) (*models.SyncRun, error) {
	if r.failAll {
		return nil, errors.New("database locked")
	}
	r.started++
	run := models.NewSyncRun(r.started, sourceURL, playlistName)
	run.SetID("run-1")
	return run, nil
}

func (r *recordingRecorder) RecordOutcome(runID string, entry models.LogEntry) error {
	if r.failAll {
		return errors.New("database locked")
	}
	r.runIDs = append(r.runIDs, runID)
	r.outcomes = append(r.outcomes, entry)
	return nil
}

func (r *recordingRecorder) FinishRun(run *models.SyncRun) error {
	if r.failAll {
		return errors.New("database locked")
	}
	r.finished = append(r.finished, run)
	return nil
}

func twoTracks() []models.TrackDescriptor {
	return []models.TrackDescriptor{
		{Ordinal: 1, Title: "Song A (Live)", SourceURL: "https://youtu.be/a"},
		{Ordinal: 2, Title: "Song B", SourceURL: "https://youtu.be/b"},
	}
}

func TestPlaylistEngine_Run(t *testing.T) {
	params := RunParams{SourceURL: "https://youtube.com/playlist?list=PL1", PlaylistName: "Imported"}

	t.Run("matched track is inserted and unmatched track is uploaded", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks())
		f.catalog.Hits["Song A"] = &services.SearchHit{Type: "track", ID: "100", AlbumIDs: []string{"200"}}

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !result.Created || len(f.catalog.Created) != 1 {
			t.Errorf("expected destination playlist to be created once, got %v", f.catalog.Created)
		}
		if len(f.catalog.Inserts) != 2 || f.catalog.Inserts[0].TrackID != "100" || f.catalog.Inserts[0].AlbumID != "200" {
			t.Fatalf("expected insert of 100:200 followed by the uploaded track, got %+v", f.catalog.Inserts)
		}
		if linked := f.catalog.Inserts[1]; linked.TrackID != "u-1" || linked.AlbumID != "" || linked.Revision != 2 {
			t.Errorf("uploaded track should be inserted with a fresh revision, got %+v", linked)
		}
		if f.server.uploads() != 1 {
			t.Fatalf("expected 1 upload, got %d", f.server.uploads())
		}
		if len(f.catalog.Targets) != 1 || f.catalog.Targets[0].PlaylistID != result.Playlist.ID {
			t.Errorf("upload target should be issued for playlist %s, got %+v", result.Playlist.ID, f.catalog.Targets)
		}

		if len(result.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(result.Entries))
		}
		first, second := result.Entries[0], result.Entries[1]
		if first.Ordinal != 1 || first.Title != "Song A" || first.Outcome != models.OutcomeInserted {
			t.Errorf("unexpected first entry %+v", first)
		}
		if second.Ordinal != 2 || second.Match != models.MatchNone || second.Outcome != models.OutcomeUploaded {
			t.Errorf("unexpected second entry %+v", second)
		}
		if second.PlaylistID != result.Playlist.ID || second.Response != `{"result":"CREATED"}` {
			t.Errorf("upload should be linked to playlist with verbatim reply, got %+v", second)
		}
		if second.Err != nil {
			t.Errorf("linked upload should carry no error, got %v", second.Err)
		}

		run := result.Run
		if run.Status() != models.RunCompleted || run.Total() != 2 || run.Inserted() != 1 || run.Uploaded() != 1 {
			t.Errorf("unexpected run counters: status=%s total=%d inserted=%d uploaded=%d",
				run.Status(), run.Total(), run.Inserted(), run.Uploaded())
		}

		content := th.MustReadFile(t, f.journal)
		for _, want := range []string{
			"Создан новый плейлист: Imported",
			"1) Добавлено: Song A",
			`2) Не найдено: Song B; загружено: {"result":"CREATED"}`,
		} {
			if !strings.Contains(content, want) {
				t.Errorf("journal missing %q:\n%s", want, content)
			}
		}
	})

	t.Run("entries follow playlist order with mixed outcomes", func(t *testing.T) {
		tracks := []models.TrackDescriptor{
			{Ordinal: 1, Title: "Alpha", SourceURL: "https://youtu.be/1"},
			{Ordinal: 2, Title: "Beta [Official MV]", SourceURL: "https://youtu.be/2"},
			{Ordinal: 3, Title: "Gamma", SourceURL: "https://youtu.be/3"},
			{Ordinal: 4, Title: "Delta", SourceURL: "https://youtu.be/4"},
		}
		f := newEngineFixture(t, tracks)
		f.catalog.Existing = []models.PlaylistHandle{{ID: "7", OwnerID: "42", Name: "Imported"}}
		f.catalog.Hits["Alpha"] = &services.SearchHit{Type: "track", ID: "1"}
		f.catalog.Hits["Beta"] = &services.SearchHit{Type: "album", ID: "2"}
		f.catalog.Hits["Gamma"] = &services.SearchHit{Type: "track", ID: "3"}
		f.catalog.InsertErrs = []error{nil, nil, shared.ErrAPIRequest}
		f.source.FetchErrs["https://youtu.be/4"] = []error{shared.ErrSourceUnavailable}

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Created {
			t.Error("expected existing playlist to be reused")
		}

		want := []struct {
			title   string
			match   models.MatchKind
			outcome models.Outcome
		}{
			{"Alpha", models.MatchTrack, models.OutcomeInserted},
			{"Beta", models.MatchNonTrack, models.OutcomeUploaded},
			{"Gamma", models.MatchTrack, models.OutcomeInsertFailed},
			{"Delta", models.MatchNone, models.OutcomeFetchFailed},
		}
		if len(result.Entries) != len(want) {
			t.Fatalf("expected %d entries, got %d", len(want), len(result.Entries))
		}
		for i, w := range want {
			e := result.Entries[i]
			if e.Ordinal != i+1 || e.Title != w.title || e.Match != w.match || e.Outcome != w.outcome {
				t.Errorf("entry %d: expected %s/%s/%s, got %+v", i, w.title, w.match, w.outcome, e)
			}
		}
		if result.Run.Failed() != 2 {
			t.Errorf("expected 2 failures, got %d", result.Run.Failed())
		}
	})

	t.Run("search failure is recorded and the run continues", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks())
		f.catalog.SearchErr = errors.New("status 500")

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(result.Entries))
		}
		for _, e := range result.Entries {
			if e.Outcome != models.OutcomeSearchFailed || !errors.Is(e.Err, shared.ErrSearchFailed) {
				t.Errorf("expected search failure, got %+v", e)
			}
		}
		if f.server.uploads() != 0 {
			t.Error("search failures must not fall back to upload")
		}
	})

	t.Run("upload failure keeps its classification", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks()[1:])
		f.server.mu.Lock()
		f.server.status = http.StatusForbidden
		f.server.mu.Unlock()

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		e := result.Entries[0]
		if e.Outcome != models.OutcomeUploadFailed || e.UploadError != models.UploadErrTransport {
			t.Errorf("expected transport upload failure, got %+v", e)
		}
	})

	t.Run("upload target failure", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks()[1:])
		f.catalog.TargetErr = shared.ErrUploadTarget

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		e := result.Entries[0]
		if e.Outcome != models.OutcomeUploadFailed || e.UploadError != models.UploadErrTarget {
			t.Errorf("expected target failure, got %+v", e)
		}
		if f.server.uploads() != 0 {
			t.Error("no upload should happen without a target")
		}
	})

	t.Run("upload whose insert is rejected is reported unlinked", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks()[1:])
		f.catalog.InsertErrs = []error{shared.ErrAPIRequest}

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.server.uploads() != 1 || len(f.catalog.Inserts) != 1 {
			t.Fatalf("expected one upload and one link attempt, got %d uploads %+v", f.server.uploads(), f.catalog.Inserts)
		}

		e := result.Entries[0]
		if e.Outcome != models.OutcomeUploadUnlinked || !errors.Is(e.Err, shared.ErrInsertRejected) {
			t.Errorf("expected unlinked upload, got %+v", e)
		}
		if e.Response != `{"result":"CREATED"}` || e.PlaylistID != "" {
			t.Errorf("unlinked upload should keep the reply and no playlist, got %+v", e)
		}
		if run := result.Run; run.Uploaded() != 0 || run.Failed() != 1 {
			t.Errorf("expected the track to count as failed, got uploaded=%d failed=%d", run.Uploaded(), run.Failed())
		}
		if content := th.MustReadFile(t, f.journal); !strings.Contains(content, "2) Не найдено: Song B; загружено: {\"result\":\"CREATED\"}; не добавлено в плейлист:") {
			t.Errorf("journal should report the missing link:\n%s", content)
		}
	})

	t.Run("upload target without track id is reported unlinked", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks()[1:])
		f.catalog.NoTrackID = true

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.catalog.Inserts) != 0 {
			t.Errorf("nothing can be inserted without a track id, got %+v", f.catalog.Inserts)
		}
		if e := result.Entries[0]; e.Outcome != models.OutcomeUploadUnlinked || !errors.Is(e.Err, shared.ErrInsertRejected) {
			t.Errorf("expected unlinked upload, got %+v", e)
		}
	})

	t.Run("extraction failure aborts before touching the playlist", func(t *testing.T) {
		f := newEngineFixture(t, nil)
		f.source.ExtractErr = shared.ErrExtractFailed

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if !errors.Is(err, shared.ErrExtractFailed) {
			t.Fatalf("expected ErrExtractFailed, got %v", err)
		}
		if result == nil || result.Run.Status() != models.RunAborted {
			t.Fatalf("expected aborted run, got %+v", result)
		}
		if len(f.catalog.Created) != 0 {
			t.Error("playlist should not be created when extraction fails")
		}
		if len(f.recorder.finished) != 1 || f.recorder.finished[0].Status() != models.RunAborted {
			t.Error("expected aborted run to be recorded")
		}
	})

	t.Run("cancellation aborts between tracks", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := f.engine(t).Run(ctx, params, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(result.Entries) != 0 {
			t.Errorf("expected no entries, got %d", len(result.Entries))
		}
	})

	t.Run("recorder receives every outcome", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks())

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.recorder.started != 1 || len(f.recorder.finished) != 1 {
			t.Errorf("expected one start and one finish, got %d and %d", f.recorder.started, len(f.recorder.finished))
		}
		if len(f.recorder.outcomes) != 2 {
			t.Fatalf("expected 2 recorded outcomes, got %d", len(f.recorder.outcomes))
		}
		for _, id := range f.recorder.runIDs {
			if id != result.Run.ID() {
				t.Errorf("outcome recorded for %s, expected %s", id, result.Run.ID())
			}
		}
	})

	t.Run("recorder failures do not abort", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks())
		f.recorder.failAll = true

		result, err := f.engine(t).Run(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Run.ID() == "" {
			t.Error("expected a generated run id")
		}
		if len(result.Entries) != 2 {
			t.Errorf("expected 2 entries, got %d", len(result.Entries))
		}
	})

	t.Run("journal failure aborts", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks())
		journal, err := OpenJournal(f.journal, nil)
		if err != nil {
			t.Fatalf("OpenJournal failed: %v", err)
		}
		journal.Close()
		opts := f.opts
		opts.Journal = journal
		f.catalog.Existing = []models.PlaylistHandle{{ID: "7", Name: "Imported"}}

		_, err = NewPlaylistEngine(opts).Run(context.Background(), params, nil)
		if !errors.Is(err, os.ErrClosed) {
			t.Errorf("expected os.ErrClosed, got %v", err)
		}
	})

	t.Run("fetched files are removed unless kept", func(t *testing.T) {
		for _, keep := range []bool{false, true} {
			f := newEngineFixture(t, twoTracks()[1:])
			f.opts.KeepFiles = keep
			engine := f.engine(t)

			if _, err := engine.Run(context.Background(), params, nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			path := engine.acquirer.LocalPath("Song B")
			if keep {
				th.AssertFileExists(t, path)
			} else {
				th.AssertFileMissing(t, path)
			}
		}
	})

	t.Run("window is passed to the source", func(t *testing.T) {
		f := newEngineFixture(t, nil)
		p := params
		p.Window = models.Window{Skip: 5, Count: 10}

		if _, err := f.engine(t).Run(context.Background(), p, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.source.Windows) != 1 || f.source.Windows[0] != p.Window {
			t.Errorf("expected window %+v, got %+v", p.Window, f.source.Windows)
		}
	})

	t.Run("progress updates cover every phase", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks())
		progress := make(chan ProgressUpdate, 32)

		if _, err := f.engine(t).Run(context.Background(), params, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		phases := map[Phase]int{}
		var last ProgressUpdate
		for u := range progress {
			phases[u.Phase]++
			last = u
		}
		if phases[ExtractPlaylist] != 2 || phases[ResolvePlaylist] != 2 || phases[ProcessTracks] != 4 {
			t.Errorf("unexpected phase counts %v", phases)
		}
		if last.Phase != FinishRun {
			t.Errorf("expected final update to be FinishRun, got %s", last.Phase)
		}
	})

	t.Run("full progress channel does not block", func(t *testing.T) {
		f := newEngineFixture(t, twoTracks())
		progress := make(chan ProgressUpdate)
		engine := f.engine(t)

		done := make(chan error, 1)
		go func() {
			_, err := engine.Run(context.Background(), params, progress)
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("run blocked on progress channel")
		}
	})

	t.Run("validates arguments and collaborators", func(t *testing.T) {
		f := newEngineFixture(t, nil)
		tests := []struct {
			name   string
			opts   func(EngineOpts) EngineOpts
			params RunParams
			want   error
		}{
			{"missing url", nil, RunParams{PlaylistName: "Imported"}, shared.ErrMissingArgument},
			{"missing name", nil, RunParams{SourceURL: "https://youtu.be/x"}, shared.ErrMissingArgument},
			{"no catalog", func(o EngineOpts) EngineOpts { o.Catalog = nil; return o }, params, shared.ErrServiceUnavailable},
			{"no source", func(o EngineOpts) EngineOpts { o.Source = nil; return o }, params, shared.ErrServiceUnavailable},
			{"no uploader", func(o EngineOpts) EngineOpts { o.Uploader = nil; return o }, params, shared.ErrServiceUnavailable},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				opts := f.opts
				if tt.opts != nil {
					opts = tt.opts(opts)
				}
				result, err := NewPlaylistEngine(opts).Run(context.Background(), tt.params, nil)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if result != nil {
					t.Error("expected no result for invalid input")
				}
			})
		}
	})
}

func TestPlaylistEngine_Match(t *testing.T) {
	catalog := &th.MockCatalog{Hits: map[string]*services.SearchHit{
		"Song A": {Type: "track", ID: "100", AlbumIDs: []string{"200"}},
	}}
	engine := NewPlaylistEngine(EngineOpts{Catalog: catalog, Logger: quietLogger()})

	clean, result, err := engine.Match(context.Background(), "Song A (Official Video)")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if clean != "Song A" {
		t.Errorf("expected normalized title Song A, got %q", clean)
	}
	if result != (models.CatalogTrack{ID: "100", AlbumID: "200"}) {
		t.Errorf("unexpected match %#v", result)
	}
	if len(catalog.Inserts) != 0 || len(catalog.Created) != 0 {
		t.Error("Match must not modify any playlist")
	}
}

func TestSearchTitle(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"Song A (Live)", "Song A"},
		{"  Song   B  ", "Song B"},
		{"(Official)", "(Official)"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := searchTitle(tt.raw); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
