package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialects supported by SQLStore
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// SQLStore implements Store on PostgreSQL or SQLite.
// Queries are written with ? placeholders and rebound per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// Open connects to the database of the given dialect and checks it is
// reachable
func Open(dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewSQLStore creates a store on an open database
func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get retrieves a preference by key
func (s *SQLStore) Get(ctx context.Context, key string) (*Preference, error) {
	var p Preference
	var value []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT name, value, created_at, updated_at
		FROM preferences
		WHERE name = ?
	`), key).Scan(&p.Key, &value, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}

	p.Value = json.RawMessage(value)
	return &p, nil
}

// Set inserts or replaces a preference. created_at is kept on replace.
func (s *SQLStore) Set(ctx context.Context, key string, value json.RawMessage) (*Preference, error) {
	if err := Validate(key, value); err != nil {
		return nil, err
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO preferences (name, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE
		SET value = excluded.value, updated_at = excluded.updated_at
	`), key, string(value), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store preference: %w", err)
	}

	return s.Get(ctx, key)
}

// Delete removes a preference
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM preferences
		WHERE name = ?
	`), key)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return nil
}

// List returns all preferences ordered by key
func (s *SQLStore) List(ctx context.Context) ([]*Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, created_at, updated_at
		FROM preferences
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	list := []*Preference{}
	for rows.Next() {
		var p Preference
		var value []byte
		if err := rows.Scan(&p.Key, &value, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		p.Value = json.RawMessage(value)
		list = append(list, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preferences: %w", err)
	}

	return list, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
