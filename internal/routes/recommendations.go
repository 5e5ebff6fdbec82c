package routes

import (
	"net/http"
	"strconv"
	"strings"

	"tastematch-server/internal/deps"
	"tastematch-server/internal/model"
	"tastematch-server/internal/recs"
	"tastematch-server/pkg/catalog"
	pkghttpx "tastematch-server/pkg/httpx"
)

// Recommendations registers GET /users/{id}/recommendations
//
// Query parameters: kind (tv|movie, default tv), based_on (comma list
// of library item ids, at most five are used), limit (further caps the
// mode's own result cap). Responses are deliberately not cached: the
// shuffle exists to vary repeated calls.
func Recommendations(d deps.ServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := r.PathValue("id")
		if userID == "" {
			writeError(w, r, pkghttpx.BadRequest("missing user id", nil))
			return
		}

		kind := r.URL.Query().Get("kind")
		if kind == "" {
			kind = recs.KindDefault
		}
		if kind != catalog.KindTV && kind != catalog.KindMovie {
			writeError(w, r, pkghttpx.BadRequest("kind must be tv or movie", nil))
			return
		}

		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeError(w, r, pkghttpx.BadRequest("invalid limit", err))
				return
			}
			limit = n
		}

		lib, err := d.Library.Load(ctx, userID)
		if err != nil {
			writeError(w, r, pkghttpx.Internal("failed to load library", err))
			return
		}

		basis, badID := basisItems(lib, kind, r.URL.Query().Get("based_on"))
		if badID != "" {
			writeError(w, r, pkghttpx.BadRequest("based_on id not in library: "+badID, nil))
			return
		}

		items := d.Recs.Recommend(ctx, kind, lib, basis)
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		if items == nil {
			items = []catalog.Item{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"count": len(items),
		})
	}
}

// basisItems resolves the based_on id list against the user's library.
// Ids the user does not own are rejected, matching the rule that
// recommendations are grounded in items actually tracked.
func basisItems(lib model.Library, kind, param string) ([]model.LibraryItem, string) {
	if param == "" {
		return nil, ""
	}
	pool := lib.Series
	if kind == catalog.KindMovie {
		pool = lib.Movies
	}
	byID := make(map[int64]model.LibraryItem, len(pool))
	for _, it := range pool {
		byID[it.ID] = it
	}

	var basis []model.LibraryItem
	for _, part := range strings.Split(param, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, part
		}
		it, ok := byID[id]
		if !ok {
			return nil, part
		}
		basis = append(basis, it)
	}
	return basis, ""
}
