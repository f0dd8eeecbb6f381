package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationDir = "migrations"

type MigrateDirection string

const (
	MigrateUp     MigrateDirection = "up"
	MigrateDown   MigrateDirection = "down"
	MigrateStatus MigrateDirection = "status"
)

type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info().Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error().Msgf(format, v...)
}

// Migrate runs the embedded goose migrations in the given direction.
// Down rolls back a single version.
func Migrate(ctx context.Context, database *gorm.DB, direction MigrateDirection, log zerolog.Logger) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{log: log.With().Str("component", "migrate").Logger()})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch direction {
	case MigrateUp:
		err = goose.UpContext(ctx, sqlDB, migrationDir)
	case MigrateDown:
		err = goose.DownContext(ctx, sqlDB, migrationDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, sqlDB, migrationDir)
	default:
		return fmt.Errorf("unknown migrate direction %q", direction)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}
