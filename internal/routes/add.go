package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"tastematch-server/internal/deps"
	"tastematch-server/internal/model"
	"tastematch-server/internal/offline"
	pkghttpx "tastematch-server/pkg/httpx"
	"tastematch-server/pkg/writeapi"
)

// AddToLibrary registers POST /library
//
// Forwards an add request to the backend write API. When the far side
// is unreachable the write is parked in the offline queue instead of
// failing the request; the drain job replays it once connectivity
// returns.
func AddToLibrary(d deps.ServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type addReq struct {
			UserID string `json:"user_id"`
			Kind   string `json:"kind"`
			ID     int64  `json:"id"`
			Title  string `json:"title"`
		}
		type addResp struct {
			Queued  bool   `json:"queued"`
			Message string `json:"message"`
		}

		ctx := r.Context()
		var req addReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, pkghttpx.BadRequest("invalid json", err))
			return
		}
		if req.UserID == "" || req.ID == 0 {
			writeError(w, r, pkghttpx.BadRequest("missing fields", nil))
			return
		}
		if _, ok := model.AllowedKinds[req.Kind]; !ok {
			writeError(w, r, pkghttpx.BadRequest("kind must be series or movie", nil))
			return
		}

		err := d.WriteAPI.Add(ctx, writeapi.AddRequest{
			UserID: req.UserID,
			Kind:   req.Kind,
			ID:     req.ID,
			Title:  req.Title,
		})
		if err == nil {
			// The cached collection and match results for this user are now stale.
			_ = d.Offline.Evict(collectionPath(req.UserID, req.Kind))
			_ = d.Cache.DeletePrefix(ctx, "match:"+req.UserID+":")
			writeJSON(w, http.StatusCreated, addResp{Queued: false, Message: "added"})
			return
		}

		log.Warn().Err(err).Str("user_id", req.UserID).Int64("id", req.ID).
			Msg("write api unavailable, queueing add")
		payload, _ := json.Marshal(map[string]any{"id": req.ID, "title": req.Title, "kind": req.Kind})
		path := fmt.Sprintf("%s/%d", collectionPath(req.UserID, req.Kind), req.ID)
		if _, qerr := d.Offline.Enqueue(path, offline.OpSet, payload); qerr != nil {
			writeError(w, r, pkghttpx.Internal("failed to queue add", qerr))
			return
		}
		writeJSON(w, http.StatusAccepted, addResp{Queued: true, Message: "queued for sync"})
	}
}

func collectionPath(userID, kind string) string {
	if kind == model.KindMovie {
		return "users/" + userID + "/movies"
	}
	return "users/" + userID + "/serien"
}
