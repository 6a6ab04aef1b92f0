package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/lbx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
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

	if err := r.configure(cmd); err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		r.config = shared.DefaultConfig()
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := shared.AppliedVersions(db)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s (%d migrations applied)\n", r.config.Database.Path, len(applied))
}

// SetupConfig writes the template config file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		if !cmd.Bool("force") {
			return fmt.Errorf("%w: %s already exists, pass --force to overwrite", shared.ErrInvalidArgument, configPath)
		}
		if err := os.Remove(configPath); err != nil {
			return fmt.Errorf("failed to remove existing config: %w", err)
		}
	}

	if err := shared.CreateConfigFile(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Paste your user token from %s into listenbrainz.token\n", listenBrainzSettingsURL)
	r.writePlain("2. Run 'lbx auth validate -c %s' to check it\n", configPath)
	r.writePlain("3. Run 'lbx library scan' and then 'lbx sync run'\n")
	return nil
}
