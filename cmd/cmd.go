// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

func tokenFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "token",
		Usage:   "Yandex Music OAuth token (overrides destination.token)",
		Sources: cli.EnvVars("YMS_TOKEN"),
	}
}

// syncCommand handles playlist synchronization
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Copy a YouTube playlist into Yandex Music",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Match every track in the catalog, upload the ones that are missing",
				Flags: []cli.Flag{
					configFlag(),
					tokenFlag(),
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "YouTube playlist URL (overrides source.playlist_url)",
					},
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Destination playlist title (overrides destination.playlist_name)",
					},
					&cli.StringFlag{
						Name:  "log",
						Usage: "Journal file path (overrides sync.log_path)",
					},
					&cli.StringFlag{
						Name:  "output-dir",
						Usage: "Directory for fetched audio (overrides source.output_dir)",
					},
					&cli.IntFlag{
						Name:  "skip",
						Usage: "Number of leading playlist entries to skip",
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "Number of entries to process after skip (0 means all)",
					},
					&cli.BoolFlag{
						Name:  "keep-files",
						Usage: "Keep fetched audio after upload",
					},
					&cli.BoolFlag{
						Name:  "insecure",
						Usage: "Skip TLS verification on the upload channel",
					},
					&cli.BoolFlag{
						Name:  "no-ledger",
						Usage: "Do not record the run in the database",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:  "match",
				Usage: "Show the catalog match for a single title",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags:  []cli.Flag{configFlag(), tokenFlag()},
				Action: r.SyncMatch,
			},
		},
	}
}

// historyCommand handles recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"runs"},
		Usage:   "Inspect and export recorded sync runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded runs, newest first",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only runs with this status (running, completed, aborted)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show the per-track outcomes of a run",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "run",
						Usage: "Run sequence number, ID or \"latest\"",
						Value: "latest",
					},
					&cli.BoolFlag{
						Name:  "failed",
						Usage: "Only tracks that were not added",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "export",
				Usage: "Export the outcomes of a run",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "run",
						Usage: "Run sequence number, ID or \"latest\"",
						Value: "latest",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, markdown, text)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: run_{sequence}.{ext})",
					},
				},
				Action: r.HistoryExport,
			},
		},
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the latest migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config file from the bundled template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Yandex Music authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Yandex OAuth and save the token to the config file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
		},
	}
}
