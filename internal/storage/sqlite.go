package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements service.RecordStore on a single SQLite table. Each
// collection is still replaced as a whole, inside one transaction.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	locks  collectionLocks
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// NewSQLiteStore opens the database at dbPath. Call Migrate before use.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Read implements service.RecordStore.
func (s *SQLiteStore) Read(ctx context.Context, c model.Collection) ([]json.RawMessage, error) {
	if err := validateOp(ctx, c); err != nil {
		return nil, err
	}
	return readRows(ctx, s.db, c)
}

func readRows(ctx context.Context, q querier, c model.Collection) ([]json.RawMessage, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT body FROM records WHERE collection = ? ORDER BY position`, string(c))
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %w", common.ErrStorage, c, err)
	}
	defer func() { _ = rows.Close() }()

	records := []json.RawMessage{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%w: scanning %s: %w", common.ErrStorage, c, err)
		}
		if !json.Valid([]byte(body)) {
			return nil, fmt.Errorf("%w: %s row %d is not valid JSON", common.ErrDatabaseCorrupted, c, len(records))
		}
		records = append(records, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating %s: %w", common.ErrStorage, c, err)
	}
	return records, nil
}

// Replace implements service.RecordStore.
func (s *SQLiteStore) Replace(ctx context.Context, c model.Collection, records []json.RawMessage) error {
	if err := validateOp(ctx, c); err != nil {
		return err
	}
	unlock := s.locks.lock(c)
	defer unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return replaceRows(ctx, tx, c, records)
	})
}

// Update implements service.RecordStore. The read and the replace share one
// transaction.
func (s *SQLiteStore) Update(ctx context.Context, c model.Collection, fn func([]json.RawMessage) ([]json.RawMessage, error)) error {
	if err := validateOp(ctx, c); err != nil {
		return err
	}
	unlock := s.locks.lock(c)
	defer unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := readRows(ctx, tx, c)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return replaceRows(ctx, tx, c, next)
	})
}

func replaceRows(ctx context.Context, tx *sql.Tx, c model.Collection, records []json.RawMessage) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, string(c)); err != nil {
		return fmt.Errorf("%w: clearing %s: %w", common.ErrStorage, c, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (collection, position, body) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: preparing insert: %w", common.ErrStorage, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		if !json.Valid(r) {
			return fmt.Errorf("%w: %s record %d is not valid JSON", common.ErrInvalidInput, c, i)
		}
		if _, err := stmt.ExecContext(ctx, string(c), i, string(r)); err != nil {
			return fmt.Errorf("%w: inserting into %s: %w", common.ErrStorage, c, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collection_meta (collection, row_count, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(collection) DO UPDATE SET row_count = excluded.row_count, updated_at = excluded.updated_at`,
		string(c), len(records), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: updating metadata for %s: %w", common.ErrStorage, c, err)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", common.ErrStorage, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", common.ErrStorage, err)
	}
	return nil
}
