package server

import (
	"net/http"

	"tastematch-server/internal/deps"
	"tastematch-server/internal/routes"
)

type Server struct {
	deps.ServerDeps
}

func New(sd deps.ServerDeps) *Server {
	return &Server{ServerDeps: sd}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	sd := s.ServerDeps

	// Endpoints declared here for easy scanning
	mux.HandleFunc("GET /health", routes.Health(sd))
	mux.HandleFunc("GET /users/{id}/match/{friendId}", routes.Match(sd))
	mux.HandleFunc("GET /users/{id}/recommendations", routes.Recommendations(sd))
	mux.HandleFunc("GET /users/{id}/library", routes.Library(sd))
	mux.HandleFunc("POST /library", routes.AddToLibrary(sd))
	mux.HandleFunc("GET /sync/status", routes.SyncStatus(sd))

	handler := withSecurityHeaders(withCORS(sd.CORSOrigins)(mux))
	return withCorrelationID(withLogging(handler))
}
