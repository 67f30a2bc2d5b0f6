// Package buffer persists diary events that could not be applied while the
// primary datastores were unavailable. Backed by a local BoltDB file so
// buffered progress survives a worker restart.
package buffer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/moodlog/backend/domain"
)

// Entry wraps a diary event with the bookkeeping the retry loop needs.
type Entry struct {
	ID        string            `json:"id"`
	Event     domain.DiaryEvent `json:"event"`
	Retries   int               `json:"retries"`
	Timestamp time.Time         `json:"timestamp"`

	key []byte
}

// Queue is a durable FIFO of diary events awaiting replay.
type Queue struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	bucket := []byte("diary_events")
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Queue{db: db, bucket: bucket}, nil
}

// Enqueue appends a diary event. Ordering is by enqueue time so replays apply
// removals and records in the order they originally happened.
func (q *Queue) Enqueue(ev domain.DiaryEvent) error {
	if q == nil || q.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	entry := Entry{
		ID:        uuid.NewString(),
		Event:     ev,
		Retries:   ev.Retries,
		Timestamp: time.Now(),
	}
	entry.key = []byte(fmt.Sprintf("%020d_%s", entry.Timestamp.UnixNano(), entry.ID))

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(q.bucket).Put(entry.key, payload)
	})
}

// Batch returns up to limit entries in enqueue order without removing them.
func (q *Queue) Batch(limit int) ([]Entry, error) {
	if q == nil || q.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var entries []Entry
	err := q.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(q.bucket).Cursor()
		for k, v := c.First(); k != nil && len(entries) < limit; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue
			}
			entry.key = append([]byte(nil), k...)
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

// Remove deletes a drained entry.
func (q *Queue) Remove(entry Entry) error {
	if q == nil || q.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(q.bucket).Delete(entry.key)
	})
}

// Requeue moves an entry to the back with its retry count bumped. Delete and
// re-insert happen in one transaction so a failure cannot lose the event.
func (q *Queue) Requeue(entry Entry) error {
	if q == nil || q.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	next := Entry{
		ID:        entry.ID,
		Event:     entry.Event,
		Retries:   entry.Retries + 1,
		Timestamp: time.Now(),
	}
	next.Event.Retries = next.Retries
	next.key = []byte(fmt.Sprintf("%020d_%s", next.Timestamp.UnixNano(), next.ID))

	payload, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(q.bucket)
		if err := b.Delete(entry.key); err != nil {
			return err
		}
		return b.Put(next.key, payload)
	})
}

// Size returns the number of buffered entries.
func (q *Queue) Size() (int, error) {
	if q == nil || q.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := q.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(q.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes entries older than the provided timestamp. Events that old
// describe diaries whose progress window has long since been swept; replaying
// them would fight the sweep's verdict.
func (q *Queue) Cleanup(olderThan time.Time) error {
	if q == nil || q.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(q.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue
			}
			if entry.Timestamp.Before(olderThan) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Close closes the Bolt database.
func (q *Queue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}
