package routes

import (
	"net/http"
	"strconv"
	"time"

	"tastematch-server/internal/deps"
	pkghttpx "tastematch-server/pkg/httpx"
)

// Library registers GET /users/{id}/library
//
// Pages through the user's mirrored library, newest first, with an
// HMAC-signed (added_at, item_id) cursor.
func Library(d deps.ServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := r.PathValue("id")
		if userID == "" {
			writeError(w, r, pkghttpx.BadRequest("missing user id", nil))
			return
		}

		limitStr := r.URL.Query().Get("limit")
		if limitStr == "" {
			limitStr = "20"
		}
		lim64, err := strconv.ParseInt(limitStr, 10, 32)
		if err != nil || lim64 <= 0 || lim64 > 100 {
			writeError(w, r, pkghttpx.BadRequest("invalid limit", err))
			return
		}

		var curAdded *time.Time
		var curID *int64
		if cursor := r.URL.Query().Get("cursor"); cursor != "" {
			if d.Signer == nil {
				writeError(w, r, pkghttpx.Internal("cursor signer not configured", nil))
				return
			}
			addedUnix, id, decErr := d.Signer.DecodeLibraryCursor(cursor)
			if decErr != nil {
				writeError(w, r, pkghttpx.BadRequest("invalid cursor", decErr))
				return
			}
			t := time.Unix(addedUnix, 0).UTC()
			curAdded = &t
			curID = &id
		}

		items, err := d.Repo.Libraries.ListLibraryPage(ctx, userID, curAdded, curID, int32(lim64))
		if err != nil {
			writeError(w, r, pkghttpx.Internal("failed to list library", err))
			return
		}
		total, err := d.Repo.Libraries.CountLibrary(ctx, userID)
		if err != nil {
			writeError(w, r, pkghttpx.Internal("failed to count library", err))
			return
		}

		resp := map[string]any{
			"items": items,
			"count": len(items),
			"total": total,
		}
		if len(items) == int(lim64) && d.Signer != nil {
			last := items[len(items)-1]
			resp["next_cursor"] = d.Signer.EncodeLibraryCursor(last.AddedAt.Unix(), last.ID)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
