package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("store: snapshot not found")

const snapshotKey = "reminder_state"

// Backend persists the reminder snapshot as one opaque blob per write, so a
// crash between writes can lose at most the most recent mutation.
type Backend interface {
	Read() ([]byte, error)
	Write(blob []byte) error
	Close() error
}

type SQLiteBackend struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Read() ([]byte, error) {
	var value string
	err := b.db.QueryRow(`SELECT value FROM snapshots WHERE key = ?`, snapshotKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (b *SQLiteBackend) Write(blob []byte) error {
	_, err := b.db.Exec(`
		INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		snapshotKey, string(blob), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// MemoryBackend keeps the snapshot for the session only. It is the degraded
// mode when durable storage is unavailable, and the test double.
type MemoryBackend struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Seed pre-loads a blob, standing in for a snapshot written by a previous
// session.
func (b *MemoryBackend) Seed(blob []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blob = append([]byte(nil), blob...)
}

func (b *MemoryBackend) Read() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.blob == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b.blob...), nil
}

func (b *MemoryBackend) Write(blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blob = append([]byte(nil), blob...)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
