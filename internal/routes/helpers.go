package routes

import (
	"net/http"

	pkghttpx "tastematch-server/pkg/httpx"
)

// thin aliases so handlers in this package stay short
func writeJSON(w http.ResponseWriter, status int, v any) {
	pkghttpx.WriteJSON(w, status, v)
}

func writeError(w http.ResponseWriter, r *http.Request, he *pkghttpx.HTTPError) {
	pkghttpx.WriteError(w, r, he)
}
