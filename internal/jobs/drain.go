package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tastematch-server/internal/offline"
)

// QueueBackend is the slice of the realtime client the drain loop
// needs. *realtime.Client satisfies it.
type QueueBackend interface {
	Set(ctx context.Context, path string, payload json.RawMessage) error
	Update(ctx context.Context, path string, payload json.RawMessage) error
	Delete(ctx context.Context, path string) error
	Reachable(ctx context.Context) bool
}

// StartQueueDrain starts the connectivity-driven queue drain: every
// interval it probes the backend and, once reachable, pushes pending
// writes in insertion order. Offline passes are skipped quietly.
func StartQueueDrain(ctx context.Context, store *offline.Store, backend QueueBackend, interval time.Duration) {
	if store == nil || backend == nil {
		log.Warn().Msg("offline queue not configured; skipping drain job")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		wasOffline := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if store.QueueDepth() == 0 {
					continue
				}
				if !backend.Reachable(ctx) {
					if !wasOffline {
						log.Warn().Int("pending", store.QueueDepth()).Msg("backend unreachable, holding queue")
					}
					wasOffline = true
					continue
				}
				if wasOffline {
					log.Info().Msg("backend reachable again, draining queue")
				}
				wasOffline = false
				stats := store.Drain(ctx, applyWrite(backend))
				if stats.Applied+stats.Failed+stats.Exhausted > 0 {
					log.Info().Int("applied", stats.Applied).Int("failed", stats.Failed).
						Int("exhausted", stats.Exhausted).Msg("queue drain pass completed")
				}
			}
		}
	}()
}

// applyWrite maps one queued operation onto the backend call it stands for.
func applyWrite(backend QueueBackend) offline.ApplyFunc {
	return func(ctx context.Context, item offline.QueueItem) error {
		switch item.Op {
		case offline.OpSet:
			return backend.Set(ctx, item.Path, item.Payload)
		case offline.OpUpdate:
			return backend.Update(ctx, item.Path, item.Payload)
		case offline.OpDelete:
			return backend.Delete(ctx, item.Path)
		default:
			return fmt.Errorf("unknown queue op %q", item.Op)
		}
	}
}
