package offline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	bolt "go.etcd.io/bbolt"
)

// Queue operation kinds.
const (
	OpSet    = "set"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Giving-up policy: an item leaves the queue after success, after this
// many failed attempts, or once older than the staleness window,
// whichever comes first.
const (
	maxRetries  = 3
	maxQueueAge = 24 * time.Hour
)

// QueueItem is one pending backend write awaiting connectivity. Item
// ids are xids, so lexical bucket order is insertion order.
type QueueItem struct {
	ID         string          `json:"id"`
	Path       string          `json:"path"`
	Op         string          `json:"op"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Retries    int             `json:"retries"`
}

// Enqueue appends a pending write and persists it.
func (s *Store) Enqueue(path, op string, payload json.RawMessage) (QueueItem, error) {
	item := QueueItem{
		ID:         xid.New().String(),
		Path:       path,
		Op:         op,
		Payload:    payload,
		EnqueuedAt: s.now(),
	}
	enc, err := json.Marshal(item)
	if err != nil {
		return QueueItem{}, err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Put([]byte(item.ID), enc)
	})
	if err != nil {
		return QueueItem{}, err
	}
	return item, nil
}

// QueueItems returns all pending items in insertion order.
func (s *Store) QueueItems() []QueueItem {
	var out []QueueItem
	_ = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(k, v []byte) error {
			var item QueueItem
			if err := json.Unmarshal(v, &item); err == nil {
				out = append(out, item)
			}
			return nil
		})
	})
	return out
}

// QueueDepth reports the number of pending items.
func (s *Store) QueueDepth() int {
	n := 0
	_ = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketQueue).Stats().KeyN
		return nil
	})
	return n
}

// ApplyFunc pushes one queued write to the backend.
type ApplyFunc func(ctx context.Context, item QueueItem) error

// DrainStats summarizes one drain pass.
type DrainStats struct {
	Applied   int
	Failed    int
	Exhausted int
}

// Drain walks the queue in insertion order and tries each item
// independently: success removes it and applies its cache side effect,
// failure bumps the retry count, and an item past the retry or age
// limit is dropped without an attempt. Transient and permanent failures
// are treated alike.
func (s *Store) Drain(ctx context.Context, apply ApplyFunc) DrainStats {
	var stats DrainStats
	for _, item := range s.QueueItems() {
		if ctx.Err() != nil {
			return stats
		}
		if item.Retries >= maxRetries || s.now().Sub(item.EnqueuedAt) >= maxQueueAge {
			log.Warn().Str("id", item.ID).Str("path", item.Path).Str("op", item.Op).
				Int("retries", item.Retries).Msg("dropping exhausted queue item")
			_ = s.removeQueueItem(item.ID)
			stats.Exhausted++
			continue
		}
		if err := apply(ctx, item); err != nil {
			item.Retries++
			if uerr := s.updateQueueItem(item); uerr != nil {
				log.Error().Err(uerr).Str("id", item.ID).Msg("queue retry bump failed")
			}
			log.Debug().Err(err).Str("id", item.ID).Str("path", item.Path).
				Int("retries", item.Retries).Msg("queued write failed, will retry")
			stats.Failed++
			continue
		}
		_ = s.removeQueueItem(item.ID)
		s.applySideEffect(item)
		stats.Applied++
	}
	return stats
}

// applySideEffect keeps the cache coherent with a successfully applied
// write: deletes evict the path, sets and updates refresh it.
func (s *Store) applySideEffect(item QueueItem) {
	switch item.Op {
	case OpDelete:
		_ = s.Evict(item.Path)
	case OpSet, OpUpdate:
		if _, err := s.Refresh(item.Path, item.Payload); err != nil {
			log.Error().Err(err).Str("path", item.Path).Msg("cache refresh after queued write failed")
		}
	}
}

func (s *Store) removeQueueItem(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Delete([]byte(id))
	})
}

func (s *Store) updateQueueItem(item QueueItem) error {
	enc, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Put([]byte(item.ID), enc)
	})
}
