//go:build integration

package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/liamcoop/uecnrules/migrations"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL testcontainer and applies the migrations
func setupPostgres(t *testing.T) (*SQLStore, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	// Wait for database to be ready
	var db *sql.DB
	for i := 0; i < 30; i++ {
		if db, err = Open(DialectPostgres, connStr); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := migrations.Up(DialectPostgres, connStr); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgres.Terminate(ctx)
	}

	return NewSQLStore(db, DialectPostgres), cleanup
}

// TestSQLStore_Postgres runs the store contract against PostgreSQL
func TestSQLStore_Postgres(t *testing.T) {
	store, cleanup := setupPostgres(t)
	defer cleanup()

	testStore(t, store)
}

// TestCachedStore_Postgres verifies the cache in front of PostgreSQL
func TestCachedStore_Postgres(t *testing.T) {
	store, cleanup := setupPostgres(t)
	defer cleanup()

	testStore(t, NewCachedStore(store, NewInMemoryCache(time.Minute)))
}
