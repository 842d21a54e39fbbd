// Package migrations embeds the schema migrations for each supported
// database and applies them with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

// New creates a migrator for the dialect ("postgres" or "sqlite3").
// With an empty dir the embedded migrations are used.
func New(dialect, dsn, dir string) (*migrate.Migrate, error) {
	dbURL, err := DatabaseURL(dialect, dsn)
	if err != nil {
		return nil, err
	}

	if dir != "" {
		m, err := migrate.New("file://"+dir, dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %w", err)
		}
		return m, nil
	}

	src, err := iofs.New(files, dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// Up applies all pending embedded migrations
func Up(dialect, dsn string) error {
	m, err := New(dialect, dsn, "")
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DatabaseURL turns a store DSN into the URL golang-migrate expects.
// SQLite DSNs are plain file paths.
func DatabaseURL(dialect, dsn string) (string, error) {
	switch dialect {
	case "postgres":
		return dsn, nil
	case "sqlite3":
		if strings.HasPrefix(dsn, "sqlite3://") {
			return dsn, nil
		}
		return "sqlite3://" + dsn, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}
