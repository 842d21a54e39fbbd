package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/liamcoop/uecnrules/internal/config"
	"github.com/liamcoop/uecnrules/internal/logger"
	"github.com/liamcoop/uecnrules/migrations"
)

// run applies one migration command. With no -path the embedded
// migrations for the driver are used.
func run(args []string, getenv func(string) string, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var driver, dsn, migrationsPath, command string
	fs.StringVar(&driver, "driver", "", "Database driver: postgres or sqlite3 (default from PREFS_DRIVER, else postgres)")
	fs.StringVar(&dsn, "database", "", "Database URL or SQLite file path (default from DATABASE_URL or PREFS_DSN)")
	fs.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: embedded)")
	fs.StringVar(&command, "command", "up", "Migration command: up, down, version, force")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if driver == "" {
		driver = getenv("PREFS_DRIVER")
	}
	if driver == "" {
		driver = config.DriverPostgres
	}
	if dsn == "" {
		dsn = getenv("DATABASE_URL")
	}
	if dsn == "" {
		dsn = getenv("PREFS_DSN")
	}
	if dsn == "" {
		return errors.New("database URL is required: use -database or DATABASE_URL")
	}

	logger.Info("connecting to database", "driver", driver, "migrations", orEmbedded(migrationsPath))

	m, err := migrations.New(driver, dsn, migrationsPath)
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to run, database is up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("migrations completed")

	case "down":
		err = m.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		logger.Info("rollback completed")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Info("current version", "version", version, "dirty", dirty)

	case "force":
		if fs.NArg() < 1 {
			return errors.New("force requires a version number: -command force <version>")
		}
		version, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("invalid version number: %w", err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
		logger.Info("forced version", "version", version)

	default:
		return fmt.Errorf("unknown command %q (use: up, down, version, force)", command)
	}

	return nil
}

func orEmbedded(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stderr); err != nil {
		logger.Fatal("migration failed", "error", err)
	}
}
