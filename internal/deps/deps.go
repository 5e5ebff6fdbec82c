package deps

import (
	"time"

	"tastematch-server/internal/library"
	"tastematch-server/internal/match"
	"tastematch-server/internal/offline"
	"tastematch-server/internal/recs"
	"tastematch-server/internal/repos"
	"tastematch-server/pkg/cache"
	"tastematch-server/pkg/signer"
	"tastematch-server/pkg/writeapi"
)

// ServerDeps holds the dependencies required by handlers and server.
type ServerDeps struct {
	Repo        *repos.Repository
	Cache       cache.Cache
	Signer      signer.Codec
	Library     *library.Service
	Scorer      *match.Scorer
	Recs        *recs.Aggregator
	Offline     *offline.Store
	WriteAPI    *writeapi.Client
	CORSOrigins []string
	Name        string
	StartedAt   time.Time
}
