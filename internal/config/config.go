package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Preference store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config is the service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Prefs     PrefsConfig     `yaml:"prefs"`
	Converter ConverterConfig `yaml:"converter"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SlowRequest    time.Duration `yaml:"slow_request"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// PrefsConfig selects the preference store
type PrefsConfig struct {
	Driver   string        `yaml:"driver"`
	DSN      string        `yaml:"dsn"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ConverterConfig points at the database conversion service.
// An empty URL disables database uploads.
type ConverterConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig bounds editing sessions
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LogConfig configures internal/logger
type LogConfig struct {
	Level       string `yaml:"level"`
	SampleRate  int    `yaml:"sample_rate"`
	OTELEnabled bool   `yaml:"otel_enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 60 * time.Second,
			SlowRequest:    2 * time.Second,
			MaxUploadBytes: 64 << 20,
		},
		Prefs: PrefsConfig{
			Driver:   DriverMemory,
			CacheTTL: 5 * time.Minute,
		},
		Converter: ConverterConfig{
			Timeout: 60 * time.Second,
		},
		Session: SessionConfig{
			IdleTTL:       12 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:       "INFO",
			SampleRate:  1,
			ServiceName: "uecnrules",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and the process environment, in that order.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	get := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	if v := get("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := get("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
		}
		c.Server.MaxUploadBytes = n
	}

	if v := get("DATABASE_URL"); v != "" {
		c.Prefs.DSN = v
		if get("PREFS_DRIVER") == "" {
			c.Prefs.Driver = DriverPostgres
		}
	}
	if v := get("PREFS_DRIVER"); v != "" {
		c.Prefs.Driver = strings.ToLower(v)
	}
	if v := get("PREFS_DSN"); v != "" {
		c.Prefs.DSN = v
	}

	if v := get("CONVERTER_URL"); v != "" {
		c.Converter.URL = v
	}
	if v := get("CONVERTER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CONVERTER_TIMEOUT: %w", err)
		}
		c.Converter.Timeout = d
	}

	if v := get("SESSION_IDLE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_IDLE_TTL: %w", err)
		}
		c.Session.IdleTTL = d
	}

	if v := get("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := get("ERROR_SAMPLE_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ERROR_SAMPLE_RATE: %w", err)
		}
		c.Log.SampleRate = n
	}
	if v := get("OTEL_ENABLED"); v != "" {
		c.Log.OTELEnabled = strings.EqualFold(v, "true")
	}
	if v := get("OTEL_SERVICE_NAME"); v != "" {
		c.Log.ServiceName = v
	}

	return nil
}

// Validate checks the combined configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	} else if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server port must be numeric: %q", c.Server.Port))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload size must be positive"))
	}

	switch c.Prefs.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Prefs.DSN == "" {
			errs = append(errs, fmt.Errorf("prefs driver %s requires a DSN", c.Prefs.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown prefs driver %q (use memory, postgres, sqlite3)", c.Prefs.Driver))
	}

	if c.Converter.Timeout <= 0 {
		errs = append(errs, errors.New("converter timeout must be positive"))
	}
	if c.Log.SampleRate < 1 {
		errs = append(errs, errors.New("log sample rate must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
