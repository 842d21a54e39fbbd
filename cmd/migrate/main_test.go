package main

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func noEnv(string) string { return "" }

func tableExists(t *testing.T, path string) bool {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'preferences'`).Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	return n == 1
}

// TestRun_SQLite verifies up, version and down against a SQLite file
func TestRun_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	base := []string{"-driver", "sqlite3", "-database", path}

	if err := run(append(base, "-command", "version"), noEnv, io.Discard); err != nil {
		t.Fatalf("version before up failed: %v", err)
	}

	if err := run(append(base, "-command", "up"), noEnv, io.Discard); err != nil {
		t.Fatalf("up failed: %v", err)
	}
	if !tableExists(t, path) {
		t.Fatal("preferences table missing after up")
	}

	// a second up is a no-op
	if err := run(append(base, "-command", "up"), noEnv, io.Discard); err != nil {
		t.Fatalf("repeated up failed: %v", err)
	}

	if err := run(append(base, "-command", "version"), noEnv, io.Discard); err != nil {
		t.Fatalf("version failed: %v", err)
	}

	if err := run(append(base, "-command", "down"), noEnv, io.Discard); err != nil {
		t.Fatalf("down failed: %v", err)
	}
	if tableExists(t, path) {
		t.Error("preferences table still present after down")
	}
}

// TestRun_Errors verifies argument validation
func TestRun_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	tests := []struct {
		name string
		args []string
	}{
		{"missing database", []string{"-driver", "sqlite3"}},
		{"unknown driver", []string{"-driver", "oracle", "-database", path}},
		{"unknown command", []string{"-driver", "sqlite3", "-database", path, "-command", "sideways"}},
		{"force without version", []string{"-driver", "sqlite3", "-database", path, "-command", "force"}},
		{"force with bad version", []string{"-driver", "sqlite3", "-database", path, "-command", "force", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(tt.args, noEnv, io.Discard); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestRun_Env verifies driver and database fall back to the environment
func TestRun_Env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	env := map[string]string{"PREFS_DRIVER": "sqlite3", "PREFS_DSN": path}

	if err := run(nil, func(k string) string { return env[k] }, io.Discard); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
	if !tableExists(t, path) {
		t.Error("preferences table missing")
	}
}
