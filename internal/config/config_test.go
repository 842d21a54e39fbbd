package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

// TestLoad_Defaults verifies the built-in configuration is valid
func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", env(nil))
	if err != nil {
		t.Fatalf("LoadWithEnv() failed: %v", err)
	}

	if cfg.Server.Port != "8080" || cfg.Prefs.Driver != DriverMemory || cfg.Converter.URL != "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Converter.Timeout != 60*time.Second {
		t.Errorf("Converter.Timeout = %v", cfg.Converter.Timeout)
	}
}

// TestLoad_FileThenEnv verifies environment values override the file
func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: "9000"
  slow_request: 500ms
prefs:
  driver: sqlite3
  dsn: /tmp/prefs.db
converter:
  url: http://converter:5000/api/convert-mdb
  timeout: 30s
log:
  level: DEBUG
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	cfg, err := LoadWithEnv(path, env(map[string]string{
		"PORT":              "9100",
		"CONVERTER_TIMEOUT": "5s",
		"OTEL_ENABLED":      "TRUE",
	}))
	if err != nil {
		t.Fatalf("LoadWithEnv() failed: %v", err)
	}

	if cfg.Server.Port != "9100" {
		t.Errorf("Port = %s, want env value 9100", cfg.Server.Port)
	}
	if cfg.Server.SlowRequest != 500*time.Millisecond {
		t.Errorf("SlowRequest = %v", cfg.Server.SlowRequest)
	}
	if cfg.Prefs.Driver != DriverSQLite || cfg.Prefs.DSN != "/tmp/prefs.db" {
		t.Errorf("Prefs = %+v", cfg.Prefs)
	}
	if cfg.Converter.URL == "" || cfg.Converter.Timeout != 5*time.Second {
		t.Errorf("Converter = %+v", cfg.Converter)
	}
	if cfg.Log.Level != "DEBUG" || !cfg.Log.OTELEnabled {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

// TestLoad_DatabaseURL verifies DATABASE_URL selects the postgres store
func TestLoad_DatabaseURL(t *testing.T) {
	cfg, err := LoadWithEnv("", env(map[string]string{"DATABASE_URL": "postgres://u:p@db/prefs"}))
	if err != nil {
		t.Fatalf("LoadWithEnv() failed: %v", err)
	}
	if cfg.Prefs.Driver != DriverPostgres || cfg.Prefs.DSN != "postgres://u:p@db/prefs" {
		t.Errorf("Prefs = %+v", cfg.Prefs)
	}

	cfg, err = LoadWithEnv("", env(map[string]string{"DATABASE_URL": "x", "PREFS_DRIVER": "memory"}))
	if err != nil {
		t.Fatalf("LoadWithEnv() failed: %v", err)
	}
	if cfg.Prefs.Driver != DriverMemory {
		t.Errorf("explicit PREFS_DRIVER should win, got %s", cfg.Prefs.Driver)
	}
}

// TestLoad_Invalid covers validation and parse failures
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"bad port", map[string]string{"PORT": "http"}, "port"},
		{"bad driver", map[string]string{"PREFS_DRIVER": "redis"}, "unknown prefs driver"},
		{"sqlite without dsn", map[string]string{"PREFS_DRIVER": "sqlite3"}, "requires a DSN"},
		{"bad timeout", map[string]string{"CONVERTER_TIMEOUT": "soon"}, "CONVERTER_TIMEOUT"},
		{"bad sample rate", map[string]string{"ERROR_SAMPLE_RATE": "0"}, "sample rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithEnv("", env(tt.vars))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadWithEnv() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}

	if _, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), env(nil)); err == nil {
		t.Error("missing config file should fail")
	}
}
