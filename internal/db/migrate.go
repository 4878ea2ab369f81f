// Package db runs embedded schema migrations at startup.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies all pending migrations. It opens a short-lived
// database/sql connection because goose does not speak the pgx pool
// interface.
func RunMigrations(ctx context.Context, databaseURL string, log *logrus.Logger) error {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer sqlDB.Close() //nolint:errcheck // short-lived connection.

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{log})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// gooseLogger adapts logrus to goose's logger interface.
type gooseLogger struct {
	log *logrus.Logger
}

func (g gooseLogger) Fatalf(format string, v ...any) { g.log.Fatalf(format, v...) }
func (g gooseLogger) Printf(format string, v ...any) { g.log.Infof(format, v...) }
