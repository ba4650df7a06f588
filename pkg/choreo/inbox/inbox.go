// Package inbox tracks processed events so redeliveries do not apply
// their effects twice. Events are identified by event type and
// correlation ID; the first MarkProcessed for a pair wins and every
// later attempt reports a duplicate.
package inbox

import (
	"fmt"
	"sync"
	"time"
)

// Store records processed (eventType, correlationID) pairs.
type Store interface {
	// MarkProcessed records the pair and reports whether this call was
	// the first to do so. A false return means the event was already
	// handled and its effects must not be applied again.
	MarkProcessed(eventType, correlationID string) (bool, error)

	// Seen reports whether the pair has been recorded.
	Seen(eventType, correlationID string) (bool, error)

	// Close releases any underlying resources.
	Close() error
}

func key(eventType, correlationID string) string {
	return eventType + "|" + correlationID
}

// MemoryStore is an in-process Store for tests and single-run demos.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryStore creates an empty in-memory inbox.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]time.Time)}
}

// MarkProcessed records the pair, reporting true on first sight.
func (s *MemoryStore) MarkProcessed(eventType, correlationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(eventType, correlationID)
	if _, ok := s.seen[k]; ok {
		return false, nil
	}
	s.seen[k] = time.Now().UTC()
	return true, nil
}

// Seen reports whether the pair has been recorded.
func (s *MemoryStore) Seen(eventType, correlationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key(eventType, correlationID)]
	return ok, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of recorded pairs.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

var _ Store = (*MemoryStore)(nil)

// Key formats a compound correlation ID from its parts, so callers
// deduplicating on multiple fields build consistent IDs.
func Key(parts ...any) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += fmt.Sprint(p)
	}
	return out
}
