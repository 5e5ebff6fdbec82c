package routes

import (
	"net/http"
	"time"

	"tastematch-server/internal/deps"
)

// SyncStatus registers GET /sync/status
//
// Reports the offline layer's current state: how many writes are
// waiting for replay and how many cache entries are held locally.
func SyncStatus(d deps.ServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type syncResp struct {
			QueueDepth   int        `json:"queue_depth"`
			OldestQueued *time.Time `json:"oldest_queued,omitempty"`
			CacheEntries int        `json:"cache_entries"`
		}

		resp := syncResp{
			QueueDepth:   d.Offline.QueueDepth(),
			CacheEntries: d.Offline.EntryCount(),
		}
		if items := d.Offline.QueueItems(); len(items) > 0 {
			oldest := items[0].EnqueuedAt
			resp.OldestQueued = &oldest
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
