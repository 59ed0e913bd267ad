package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createSlotTableSQL = `
CREATE TABLE IF NOT EXISTS kv_slots (
    key        TEXT PRIMARY KEY,
    value      BLOB     NOT NULL,
    updated_at DATETIME NOT NULL
);
`

// SQLiteSlot keeps the value in a key/value table of a local SQLite
// database. Each write is a single upsert, so readers see either the old
// or the new value.
type SQLiteSlot struct {
	db  *sql.DB
	key string
}

// OpenSQLiteSlot opens (or creates) <dir>/taskflow.db.
func OpenSQLiteSlot(ctx context.Context, dir string) (*SQLiteSlot, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "taskflow.db"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	slot, err := NewSQLiteSlot(ctx, db, Key)
	if err != nil {
		db.Close()
		return nil, err
	}
	return slot, nil
}

// NewSQLiteSlot uses an already opened database and makes sure the slot
// table exists.
func NewSQLiteSlot(ctx context.Context, db *sql.DB, key string) (*SQLiteSlot, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if _, err := db.ExecContext(ctx, createSlotTableSQL); err != nil {
		return nil, fmt.Errorf("create slot table: %w", err)
	}
	return &SQLiteSlot{db: db, key: key}, nil
}

func (s *SQLiteSlot) Read(ctx context.Context) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_slots WHERE key = ?`, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *SQLiteSlot) Write(ctx context.Context, data []byte) error {
	q := `INSERT INTO kv_slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, q, s.key, data, time.Now().UTC())
	return err
}

func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}
