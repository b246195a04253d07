package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dimaystinov/bot-hnushka/internal/platform/sqlstore"
)

// migrationCommands are the goose operations exposed by the migrate command.
var migrationCommands = []string{"up", "down", "reset", "status", "version"}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|reset|status|version]",
	Short:     "Manage the work item database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: migrationCommands,
	RunE: func(cmd *cobra.Command, args []string) error {
		command := "up"
		if len(args) == 1 {
			command = args[0]
		}

		cfg, log, err := initializeApp(os.Stderr)
		if err != nil {
			return err
		}

		if cfg.Database.Driver == "memory" {
			return fmt.Errorf("database driver %q has no schema to migrate", cfg.Database.Driver)
		}

		dialect, err := sqlstore.DialectFor(cfg.Database.Driver)
		if err != nil {
			return err
		}

		log.Info("running migrations",
			"command", command,
			"driver", dialect.Name,
			"url", maskDatabaseURL(cfg.Database.URL))

		db, err := sqlstore.Open(cmd.Context(), dialect, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("error closing database connection", "error", err)
			}
		}()

		if err := sqlstore.Migrate(cmd.Context(), db, dialect, command, log); err != nil {
			log.Error("migration failed", "command", command, "error", err)
			return err
		}

		log.Info("migrations completed", "command", command)
		return nil
	},
}
