package inbox

import (
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "processed_events"

// BoltStore is a Store backed by a BoltDB file, so duplicate detection
// survives process restarts. BoltDB keeps all data in a single file and
// needs no external database process.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a BoltDB database at the given path
// and ensures the processed-events bucket exists. CreateBucketIfNotExists
// is safe to run on every startup.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// MarkProcessed records the pair inside a single write transaction, so
// concurrent consumers cannot both observe first sight.
func (s *BoltStore) MarkProcessed(eventType, correlationID string) (bool, error) {
	first := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		k := []byte(key(eventType, correlationID))
		if b.Get(k) != nil {
			return nil
		}
		first = true
		return b.Put(k, []byte(time.Now().UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return false, err
	}
	return first, nil
}

// Seen reports whether the pair has been recorded.
func (s *BoltStore) Seen(eventType, correlationID string) (bool, error) {
	seen := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		seen = b.Get([]byte(key(eventType, correlationID))) != nil
		return nil
	})
	return seen, err
}

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
