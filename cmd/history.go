package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/yms/internal/formatter"
	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/repositories"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/urfave/cli/v3"
)

// runView is the JSON shape of a recorded run.
type runView struct {
	ID           string     `json:"id"`
	Sequence     int        `json:"sequence"`
	SourceURL    string     `json:"source_url"`
	PlaylistName string     `json:"playlist_name"`
	PlaylistID   string     `json:"playlist_id,omitempty"`
	Status       string     `json:"status"`
	Total        int        `json:"total"`
	Inserted     int        `json:"inserted"`
	Uploaded     int        `json:"uploaded"`
	Failed       int        `json:"failed"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func newRunView(run *models.SyncRun) runView {
	return runView{
		ID:           run.ID(),
		Sequence:     run.Sequence(),
		SourceURL:    run.SourceURL(),
		PlaylistName: run.PlaylistName(),
		PlaylistID:   run.PlaylistID(),
		Status:       string(run.Status()),
		Total:        run.Total(),
		Inserted:     run.Inserted(),
		Uploaded:     run.Uploaded(),
		Failed:       run.Failed(),
		Error:        run.Error(),
		StartedAt:    run.StartedAt(),
		FinishedAt:   run.FinishedAt(),
	}
}

// openHistory loads the config at the command's --config path and opens its ledger.
func (r *Runner) openHistory(cmd *cli.Command) (*sql.DB, error) {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	db, err := shared.OpenLedger(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger: %w", err)
	}
	return db, nil
}

// HistoryList prints recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(map[string]any{
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		r.writePlain("No runs recorded yet. Start one with 'yms sync run'.\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Sync runs (%d)", len(runs)))
	for _, run := range runs {
		status := string(run.Status())
		switch run.Status() {
		case models.RunCompleted:
			status = r.palette.OK(status)
		case models.RunAborted:
			status = r.palette.Err(status)
		default:
			status = r.palette.Warn(status)
		}
		r.writePlain("#%-4d %s  %-9s  %s\n", run.Sequence(), run.StartedAt().Format(formatter.JournalTimeLayout), status, run.PlaylistName())
		r.writePlain("      %d tracks: %d inserted, %d uploaded, %d failed\n", run.Total(), run.Inserted(), run.Uploaded(), run.Failed())
	}
	return nil
}

// HistoryShow prints the per-track outcomes of one run.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	run, outcomes, err := loadRun(db, cmd.String("run"))
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d: %s", run.Sequence(), run.PlaylistName()))
	r.writePlain("Source: %s\n\n", run.SourceURL())

	failedOnly := cmd.Bool("failed")
	for _, o := range outcomes {
		if failedOnly && !o.Outcome().Failed() {
			continue
		}
		line := fmt.Sprintf("%s %3d) %s", r.palette.Mark(o.Outcome()), o.Ordinal(), o.Title())
		r.writePlain("%s\n", line)
		r.writePlain("       %s: %s\n", o.Outcome(), r.palette.Help(o.Detail()))
	}

	r.writePlain("\n%s\n", formatter.RunSummary(run))
	return nil
}

// HistoryExport writes the outcomes of one run to a file.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	run, outcomes, err := loadRun(db, cmd.String("run"))
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(cmd.String("format"), run, outcomes, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("exported run", "run", run.Sequence(), "outcomes", len(outcomes), "path", path)
	r.writePlain("%s exported %d outcomes of run #%d to %s\n", r.palette.OK("✓"), len(outcomes), run.Sequence(), path)
	return nil
}

func loadRun(db *sql.DB, ref string) (*models.SyncRun, []*models.TrackOutcome, error) {
	run, err := repositories.NewRunRepository(db).Find(ref)
	if err != nil {
		return nil, nil, fmt.Errorf("run %q: %w", ref, err)
	}
	outcomes, err := repositories.NewOutcomeRepository(db).ListByRun(run.ID())
	if err != nil {
		return nil, nil, err
	}
	return run, outcomes, nil
}
