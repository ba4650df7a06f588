// Package outbox persists outbound events locally before dispatch, so
// a broker outage or process crash between a state change and its
// publish does not lose the event. A background dispatcher drains
// pending rows to the broker in insertion order.
package outbox

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("outbox store is closed")

// Entry is one queued outbound event.
type Entry struct {
	ID        int64
	Topic     string
	Payload   []byte
	CreatedAt time.Time
}

// Store persists outbound events in SQLite.
// The path may be a file path (e.g., "./outbox.db") or ":memory:" for testing.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewStore opens the outbox database, creating the schema if needed.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS outbox (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			topic TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at TEXT NOT NULL,
			dispatched_at TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_outbox_pending
		ON outbox(id) WHERE dispatched_at IS NULL
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Store{db: db}, nil
}

// Append queues an event for dispatch.
func (s *Store) Append(topic string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO outbox (topic, payload, created_at)
		VALUES (?, ?, ?)
	`, topic, payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append outbox entry: %w", err)
	}
	return nil
}

// Pending returns up to limit undispatched entries in insertion order.
func (s *Store) Pending(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, topic, payload, created_at
		FROM outbox
		WHERE dispatched_at IS NULL
		ORDER BY id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}

	return entries, nil
}

// PendingCount returns the number of undispatched entries.
func (s *Store) PendingCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM outbox WHERE dispatched_at IS NULL
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return n, nil
}

// MarkDispatched records that the entry reached the broker.
func (s *Store) MarkDispatched(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		UPDATE outbox SET dispatched_at = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("mark entry dispatched: %w", err)
	}
	return nil
}

// Prune deletes dispatched entries older than the given age.
func (s *Store) Prune(olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		DELETE FROM outbox
		WHERE dispatched_at IS NOT NULL AND dispatched_at < ?
	`, cutoff)
	if err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}
	return nil
}

// Close closes the database. Further operations return ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
