package cursor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const createCursorsTable = `CREATE TABLE IF NOT EXISTS cursors (
	name       TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

const upsertCursor = `INSERT INTO cursors (name, position, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`

// SQLStore keeps cursors in a "cursors" table, typically inside the same
// SQLite database as the documents.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the cursors table if needed.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	_, err := db.ExecContext(ctx, createCursorsTable)
	if err != nil {
		return nil, fmt.Errorf("create cursors table: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Read implements Store.
func (s *SQLStore) Read(ctx context.Context, fingerprint string) (int64, bool, error) {
	if fingerprint == "" {
		return Unset, false, ErrEmptyFingerprint
	}

	var position int64

	err := s.db.QueryRowContext(ctx,
		`SELECT position FROM cursors WHERE name = ?`, Name(fingerprint)).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return Unset, false, nil
	}

	if err != nil {
		return Unset, false, fmt.Errorf("read cursor: %w", err)
	}

	return position, position != Unset, nil
}

// Write implements Store.
func (s *SQLStore) Write(ctx context.Context, fingerprint string, position int64) error {
	if fingerprint == "" {
		return ErrEmptyFingerprint
	}

	_, err := s.db.ExecContext(ctx, upsertCursor,
		Name(fingerprint), position, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}

	return nil
}

// Reset implements Store.
func (s *SQLStore) Reset(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		return ErrEmptyFingerprint
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM cursors WHERE name = ?`, Name(fingerprint))
	if err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}

	return nil
}
