package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"tastematch-server/internal/deps"
	pkghttpx "tastematch-server/pkg/httpx"
)

// matchCacheTTL keeps repeated profile views cheap without letting a
// fresh rating linger unseen for long.
const matchCacheTTL = 2 * time.Minute

// Match registers GET /users/{id}/match/{friendId}
func Match(d deps.ServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := r.PathValue("id")
		friendID := r.PathValue("friendId")
		if userID == "" || friendID == "" {
			writeError(w, r, pkghttpx.BadRequest("missing user ids", nil))
			return
		}
		if userID == friendID {
			writeError(w, r, pkghttpx.BadRequest("cannot match a user with themselves", nil))
			return
		}

		cacheKey := "match:" + userID + ":" + friendID
		if cached, ok := d.Cache.Get(ctx, cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cached))
			return
		}

		res := d.Scorer.Match(ctx, userID, friendID)
		b, err := json.Marshal(res)
		if err != nil {
			writeError(w, r, pkghttpx.Internal("failed to encode match result", err))
			return
		}
		_ = d.Cache.Set(ctx, cacheKey, string(b), matchCacheTTL)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}
