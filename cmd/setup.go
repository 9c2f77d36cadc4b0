package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/yms/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the run ledger and runs migrations.
//
// A missing config file is created from the bundled template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	config, err := r.loadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenLedger(config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		r.logger.Warn("rolling back the latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		r.writePlain("%s rolled back the latest migration of %s\n", r.palette.Warn("↺"), config.Database.Path)
		return nil
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("%s database ready at %s\n", r.palette.OK("✓"), config.Database.Path)
	return nil
}

// SetupConfig writes the bundled config template to the config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.writePlain("%s config written to %s\n", r.palette.OK("✓"), configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set source.playlist_url and destination.playlist_name in %s\n", configPath)
	r.writePlain("2. Set destination.client_id and destination.client_secret, then run 'yms auth login'\n")
	r.writePlain("3. Run 'yms sync run'\n")
	return nil
}
