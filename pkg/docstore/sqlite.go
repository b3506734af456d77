package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
)

// DriverName is the database/sql driver used for SQLite.
const DriverName = "sqlite"

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

const createDocumentsTable = `CREATE TABLE IF NOT EXISTS documents (
	id       INTEGER PRIMARY KEY,
	category TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL DEFAULT '',
	author   TEXT NOT NULL DEFAULT '',
	locator  TEXT NOT NULL DEFAULT '',
	content  TEXT NOT NULL DEFAULT ''
)`

const createCategoryIndex = `CREATE INDEX IF NOT EXISTS documents_category_status
	ON documents (category, status, id)`

const insertDocument = `INSERT OR REPLACE INTO documents
	(id, category, status, author, locator, content) VALUES (?, ?, ?, ?, ?, ?)`

// ErrInvalidID is returned when inserting a document without a positive ID.
var ErrInvalidID = errors.New("document id must be positive")

// SQLiteStore serves documents from a "documents" table.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at dsn.
func Open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}

	// Keeps pragmas and in-memory databases on a single connection.
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

// NewSQLiteStore wraps an open database, applying pragmas and the schema.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	for _, pragma := range sqlitePragmas {
		_, err := db.ExecContext(ctx, pragma)
		if err != nil {
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	for _, stmt := range []string{createDocumentsTable, createCategoryIndex} {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying database, e.g. for a cursor.SQLStore.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}

	return nil
}

// Insert stores documents in one transaction, replacing rows with equal IDs.
func (s *SQLiteStore) Insert(ctx context.Context, docs ...Document) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertDocument)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if doc.ID <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidID, doc.ID)
		}

		_, err = stmt.ExecContext(ctx, doc.ID, doc.Category, doc.Status, doc.Author, doc.Locator, doc.Content)
		if err != nil {
			return fmt.Errorf("insert document %d: %w", doc.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}

	return nil
}

// Fetch implements Store.
func (s *SQLiteStore) Fetch(ctx context.Context, spec query.Spec, afterID int64, limit int) ([]Document, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	where, args := whereClause(spec, afterID)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, status, author, locator, content FROM documents WHERE `+where+
			` ORDER BY id ASC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0, limit)

	for rows.Next() {
		var doc Document

		scanErr := rows.Scan(&doc.ID, &doc.Category, &doc.Status, &doc.Author, &doc.Locator, &doc.Content)
		if scanErr != nil {
			return nil, fmt.Errorf("scan document: %w", scanErr)
		}

		docs = append(docs, doc)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("fetch documents: %w", rowsErr)
	}

	return docs, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context, spec query.Spec, afterID int64) (int64, error) {
	where, args := whereClause(spec, afterID)

	var n int64

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}

	return n, nil
}

// Categories implements Store.
func (s *SQLiteStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM documents ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string

	for rows.Next() {
		var category string

		scanErr := rows.Scan(&category)
		if scanErr != nil {
			return nil, fmt.Errorf("scan category: %w", scanErr)
		}

		categories = append(categories, category)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("list categories: %w", rowsErr)
	}

	return categories, nil
}

// whereClause translates spec into a predicate on id and the filter columns.
func whereClause(spec query.Spec, afterID int64) (string, []any) {
	clauses := []string{"id > ?"}
	args := []any{afterID}

	for _, key := range activeFilters(spec) {
		values := spec.Values(key)
		if len(values) == 0 {
			clauses = append(clauses, "0")

			continue
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		clauses = append(clauses, columns[key]+" IN ("+placeholders+")")

		for _, v := range values {
			args = append(args, v)
		}
	}

	return strings.Join(clauses, " AND "), args
}
