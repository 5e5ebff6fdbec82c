package offline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketCache = []byte("cache_entries")
	bucketQueue = []byte("queue_items")
)

// DefaultTTL applies to cache entries written back by queue side
// effects, where the original write carried no TTL of its own.
const DefaultTTL = 5 * time.Minute

// Entry is one cached backend payload, keyed by backend path. Valid
// while now - StoredAt < TTL; expired entries read as misses and are
// evicted lazily on the read that finds them.
type Entry struct {
	Path        string          `json:"path"`
	Payload     json.RawMessage `json:"payload"`
	StoredAt    time.Time       `json:"stored_at"`
	LastChecked time.Time       `json:"last_checked"`
	TTL         time.Duration   `json:"ttl"`
}

// Store is the durable offline layer: a TTL cache plus a pending-write
// queue, both persisted in a local bbolt file so they survive restarts.
// Construct with Open and release with Close; safe for concurrent use.
type Store struct {
	db *bolt.DB

	// now is swapped out by tests that need to move the clock.
	now func() time.Time
}

// Open opens (creating if needed) the offline store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open offline store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCache, bucketQueue} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the cached payload for a backend path, or a miss when the
// path is absent or the entry has outlived its TTL. An expired entry is
// evicted on the spot.
func (s *Store) Get(path string) (json.RawMessage, bool) {
	var e Entry
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCache).Get([]byte(path))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &e); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if !found {
		return nil, false
	}
	if s.now().Sub(e.StoredAt) >= e.TTL {
		_ = s.Evict(path)
		return nil, false
	}
	return e.Payload, true
}

// Set stores a payload under a backend path with a fresh timestamp.
func (s *Store) Set(path string, payload json.RawMessage, ttl time.Duration) error {
	now := s.now()
	e := Entry{Path: path, Payload: payload, StoredAt: now, LastChecked: now, TTL: ttl}
	return s.putEntry(e)
}

// Evict removes a cache entry outright.
func (s *Store) Evict(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Delete([]byte(path))
	})
}

// Refresh replaces the cached payload only when the newly fetched one
// differs structurally (compared via compact serialization); either way
// the entry's last-checked time advances. Reports whether the payload
// changed. A path with no live entry is stored fresh.
func (s *Store) Refresh(path string, payload json.RawMessage) (bool, error) {
	now := s.now()
	changed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCache)
		var e Entry
		if v := b.Get([]byte(path)); v != nil {
			if err := json.Unmarshal(v, &e); err != nil {
				e = Entry{}
			}
		}
		if e.Path == "" {
			e = Entry{Path: path, TTL: DefaultTTL, StoredAt: now}
			changed = true
		}
		if !changed && !jsonEqual(e.Payload, payload) {
			changed = true
		}
		if changed {
			e.Payload = payload
			e.StoredAt = now
		}
		e.LastChecked = now
		enc, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put([]byte(path), enc)
	})
	return changed, err
}

// StalePaths lists live entries whose last freshness check is at least
// minAge old, oldest first.
func (s *Store) StalePaths(minAge time.Duration) []string {
	now := s.now()
	type stale struct {
		path    string
		checked time.Time
	}
	var found []stale
	_ = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			checked := e.LastChecked
			if checked.IsZero() {
				checked = e.StoredAt
			}
			if now.Sub(checked) >= minAge {
				found = append(found, stale{path: e.Path, checked: checked})
			}
			return nil
		})
	})
	sort.Slice(found, func(i, j int) bool { return found[i].checked.Before(found[j].checked) })
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.path
	}
	return out
}

// EntryCount reports the number of persisted cache entries, expired
// ones included.
func (s *Store) EntryCount() int {
	n := 0
	_ = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketCache).Stats().KeyN
		return nil
	})
	return n
}

func (s *Store) putEntry(e Entry) error {
	enc, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(e.Path), enc)
	})
}

// jsonEqual compares two payloads by compact re-serialization, so
// formatting differences do not count as changes.
func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Compact(&cb, b); err != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
