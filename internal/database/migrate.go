package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"lectern/internal/middleware"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

var gooseOnce sync.Once

// gooseLogger routes goose output through slog.
type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	middleware.Logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (gooseLogger) Printf(format string, v ...interface{}) {
	middleware.Logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func setupGoose() error {
	var err error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrationFS)
		goose.SetLogger(gooseLogger{})
		err = goose.SetDialect("postgres")
	})
	return err
}

// RunMigrations applies every pending embedded SQL migration.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := setupGoose(); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err == nil {
		middleware.Logger.Info("Schema migrations applied", slog.Int64("version", version))
	}
	return nil
}

// RollbackMigration reverts the most recently applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB) error {
	if err := setupGoose(); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	if err := goose.DownContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// MigrationVersion returns the current schema version recorded by goose.
func MigrationVersion(ctx context.Context, db *gorm.DB) (int64, error) {
	if err := setupGoose(); err != nil {
		return 0, fmt.Errorf("configure goose: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("get sql db: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return version, nil
}

// MigrationVersions lists the versions of every embedded migration in order.
func MigrationVersions() ([]int64, error) {
	if err := setupGoose(); err != nil {
		return nil, fmt.Errorf("configure goose: %w", err)
	}
	found, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("collect migrations: %w", err)
	}
	versions := make([]int64, 0, len(found))
	for _, m := range found {
		versions = append(versions, m.Version)
	}
	return versions, nil
}
