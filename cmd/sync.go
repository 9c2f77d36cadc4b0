package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/yms/internal/formatter"
	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/repositories"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/desertthunder/yms/internal/tasks"
	"github.com/urfave/cli/v3"
)

var _ tasks.OutcomeRecorder = (*repositories.LedgerRecorder)(nil)

// SyncRun copies a YouTube playlist into a Yandex Music playlist.
//
// Flags override the config file; the journal mirrors every outcome line to the console.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	cfg := *config
	applySyncFlags(&cfg, cmd)

	params := tasks.RunParams{
		SourceURL:    cfg.Source.PlaylistURL,
		PlaylistName: cfg.Destination.PlaylistName,
		Window:       models.Window{Skip: cfg.Sync.Skip, Count: cfg.Sync.Count},
	}
	if strings.TrimSpace(params.SourceURL) == "" {
		return fmt.Errorf("%w: --source or source.playlist_url", shared.ErrMissingArgument)
	}
	if strings.TrimSpace(params.PlaylistName) == "" {
		return fmt.Errorf("%w: --playlist or destination.playlist_name", shared.ErrMissingArgument)
	}
	if params.Window.Skip < 0 || params.Window.Count < 0 {
		return fmt.Errorf("%w: --skip and --count must not be negative", shared.ErrInvalidArgument)
	}

	catalog, err := r.catalogFor(cfg.Destination)
	if err != nil {
		return err
	}

	journal, err := tasks.OpenJournal(cfg.Sync.LogPath, r.output)
	if err != nil {
		return err
	}
	defer journal.Close()
	journal.SetStyler(r.palette.Outcome)

	opts := tasks.EngineOpts{
		Catalog:        catalog,
		Source:         r.sourceFor(cfg.Source),
		Uploader:       r.uploaderFor(cfg.Upload),
		Journal:        journal,
		SourceConfig:   cfg.Source,
		InsertAttempts: cfg.Sync.InsertAttempts,
		KeepFiles:      cfg.Sync.KeepFiles,
		Logger:         r.logger,
	}
	if !cmd.Bool("no-ledger") {
		if db := r.openLedger(cfg.Database); db != nil {
			defer db.Close()
			opts.Recorder = repositories.NewLedgerRecorder(repositories.NewRunRepository(db), repositories.NewOutcomeRepository(db))
		}
	}
	engine := tasks.NewPlaylistEngine(opts)

	r.logger.Info("starting sync", "source", params.SourceURL, "playlist", params.PlaylistName)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// The journal owns r.output while the engine runs.
		for update := range progressCh {
			switch update.Phase {
			case tasks.ExtractPlaylist, tasks.ResolvePlaylist:
				r.logger.Info(update.Message, "phase", update.Phase)
			case tasks.ProcessTracks:
				r.logger.Debug(update.Message, "step", update.Step, "total", update.Total)
			}
		}
	}()

	result, runErr := engine.Run(ctx, params, progressCh)
	close(progressCh)
	<-done

	if result != nil {
		r.writePlain("\n")
		r.writePlainHeader("Sync finished")
		r.writePlain("%s\n", formatter.RunSummary(result.Run))
		r.writePlain("%s\n", r.palette.Help(fmt.Sprintf("Journal: %d track lines appended to %s", journal.Lines(), cfg.Sync.LogPath)))
		if result.Run.Sequence() > 0 {
			r.writePlain("%s\n", r.palette.Help(fmt.Sprintf("Export with: yms history export --run %d", result.Run.Sequence())))
		}
	}
	return runErr
}

// applySyncFlags overlays explicitly set flags onto cfg.
func applySyncFlags(cfg *shared.Config, cmd *cli.Command) {
	if v := cmd.String("source"); v != "" {
		cfg.Source.PlaylistURL = v
	}
	if v := cmd.String("playlist"); v != "" {
		cfg.Destination.PlaylistName = v
	}
	if v := cmd.String("token"); v != "" {
		cfg.Destination.Token = v
	}
	if v := cmd.String("log"); v != "" {
		cfg.Sync.LogPath = v
	}
	if v := cmd.String("output-dir"); v != "" {
		cfg.Source.OutputDir = v
	}
	if cmd.IsSet("skip") {
		cfg.Sync.Skip = cmd.Int("skip")
	}
	if cmd.IsSet("count") {
		cfg.Sync.Count = cmd.Int("count")
	}
	if cmd.IsSet("keep-files") {
		cfg.Sync.KeepFiles = cmd.Bool("keep-files")
	}
	if cmd.Bool("insecure") {
		cfg.Upload.InsecureSkipVerify = true
	}
}

// openLedger opens the run ledger, or returns nil when it is unavailable.
func (r *Runner) openLedger(cfg shared.DatabaseConfig) *sql.DB {
	db, err := shared.OpenLedger(cfg)
	if err != nil {
		r.logger.Warn("run ledger unavailable, outcomes are only journaled", "path", cfg.Path, "err", err)
		return nil
	}
	return db
}

// SyncMatch normalizes a title and shows what the catalog returns for it.
func (r *Runner) SyncMatch(ctx context.Context, cmd *cli.Command) error {
	title := cmd.StringArg("title")
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	dest := config.Destination
	if v := cmd.String("token"); v != "" {
		dest.Token = v
	}

	catalog, err := r.catalogFor(dest)
	if err != nil {
		return err
	}
	engine := tasks.NewPlaylistEngine(tasks.EngineOpts{Catalog: catalog, Logger: r.logger})

	clean, result, err := engine.Match(ctx, title)
	if err != nil {
		return err
	}

	r.writePlain("Query: %s\n", clean)
	switch m := result.(type) {
	case models.CatalogTrack:
		r.writePlain("%s track %s (album %s) %s\n", r.palette.OK("✓"), m.ID, m.AlbumID, m.Title)
	case models.NonTrackHit:
		r.writePlain("%s best result is a %s, the track would be uploaded\n", r.palette.Warn("~"), m.Type)
	default:
		r.writePlain("%s not found, the track would be uploaded\n", r.palette.Err("✗"))
	}
	return nil
}
