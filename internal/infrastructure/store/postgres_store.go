package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const markerSchema = `CREATE TABLE IF NOT EXISTS hold_markers (
	marker_key TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps markers in the hold_markers table
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the hold_markers table if it does not exist
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := ps.db.ExecContext(ctx, markerSchema); err != nil {
		return fmt.Errorf("failed to create hold_markers: %w", err)
	}
	return nil
}

// Get returns the marker stored under key
func (ps *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	var value string
	err := ps.db.QueryRowContext(ctx,
		"SELECT value FROM hold_markers WHERE marker_key = $1",
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get marker: %w", err)
	}
	return value, true, nil
}

// Put upserts the marker; the last write wins
func (ps *PostgresStore) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO hold_markers (marker_key, value, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (marker_key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key,
		value,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to put marker: %w", err)
	}
	return nil
}

// Delete removes the marker
func (ps *PostgresStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if _, err := ps.db.ExecContext(ctx, "DELETE FROM hold_markers WHERE marker_key = $1", key); err != nil {
		return fmt.Errorf("failed to delete marker: %w", err)
	}
	return nil
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// A client session needs only a handful of connections
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
