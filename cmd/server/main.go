package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liamcoop/uecnrules/internal/config"
	"github.com/liamcoop/uecnrules/internal/logger"
	"github.com/liamcoop/uecnrules/migrations"
	"github.com/liamcoop/uecnrules/prefs"
)

// openPrefs builds the preference store for the configured driver.
// SQL stores are migrated on startup and read through a cache.
func openPrefs(cfg config.PrefsConfig) (prefs.Store, *sql.DB, error) {
	if cfg.Driver == config.DriverMemory {
		return prefs.NewInMemoryStore(), nil, nil
	}

	if err := migrations.Up(cfg.Driver, cfg.DSN); err != nil {
		return nil, nil, err
	}

	db, err := prefs.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	store := prefs.NewCachedStore(prefs.NewSQLStore(db, cfg.Driver), prefs.NewInMemoryCache(cfg.CacheTTL))
	return store, db, nil
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Options{
		Level:       cfg.Log.Level,
		SampleRate:  cfg.Log.SampleRate,
		OTELEnabled: cfg.Log.OTELEnabled,
		ServiceName: cfg.Log.ServiceName,
	}); err != nil {
		logger.Warn("falling back to JSON logging", "error", err)
	}

	store, db, err := openPrefs(cfg.Prefs)
	if err != nil {
		return fmt.Errorf("failed to open preference store: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	server, err := NewServer(cfg, store, db)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go server.sessions.Run(ctx, cfg.Session.SweepInterval)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "prefs_driver", cfg.Prefs.Driver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	if err := logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		logger.Fatal("startup failed", "error", err)
	}
}
