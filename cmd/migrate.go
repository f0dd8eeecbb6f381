package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"field-ticket-service/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

func init() {
	for _, direction := range []struct {
		dir   db.MigrateDirection
		short string
	}{
		{db.MigrateUp, "Apply all pending migrations"},
		{db.MigrateDown, "Roll back the latest migration"},
		{db.MigrateStatus, "Print migration status"},
	} {
		direction := direction
		migrateCmd.AddCommand(&cobra.Command{
			Use:   string(direction.dir),
			Short: direction.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd, direction.dir)
			},
		})
	}
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, direction db.MigrateDirection) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	database, err := db.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := db.Migrate(cmd.Context(), database, direction, log); err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	log.Info().Str("direction", string(direction)).Msg("migrate: ok")
	return nil
}
