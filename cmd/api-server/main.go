package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"tastematch-server/internal/config"
	"tastematch-server/internal/deps"
	"tastematch-server/internal/jobs"
	"tastematch-server/internal/library"
	"tastematch-server/internal/match"
	"tastematch-server/internal/migrate"
	"tastematch-server/internal/offline"
	"tastematch-server/internal/recs"
	"tastematch-server/internal/repos"
	"tastematch-server/internal/server"
	"tastematch-server/pkg/cache"
	"tastematch-server/pkg/catalog"
	pkgdb "tastematch-server/pkg/db"
	"tastematch-server/pkg/realtime"
	"tastematch-server/pkg/signer"
	"tastematch-server/pkg/writeapi"
)

func main() {
	_ = godotenv.Load() // best-effort
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pkgdb.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	if err := migrate.Up(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	var c cache.Cache
	if addr := cfg.ValkeyAddr; addr != "" {
		vc, err := cache.NewValkey(addr, cfg.ValkeyPassword)
		if err != nil {
			log.Error().Err(err).Msg("valkey connect failed, using in-memory cache")
			c = cache.NewInMemory()
		} else {
			c = vc
		}
	} else {
		c = cache.NewInMemory()
	}

	store, err := offline.Open(cfg.OfflineDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("offline store open failed")
	}
	defer store.Close()

	backend := realtime.New(cfg.BackendURL, cfg.BackendAuthToken)
	repository := repos.New(pool)
	libSvc := library.New(backend, store, repository, cfg.OfflineCacheTTL)
	scorer := match.NewScorer(libSvc)

	var catalogClient recs.CatalogClient
	if cfg.CatalogAPIKey != "" {
		catalogClient = catalog.New(cfg.CatalogAPIKey)
	} else {
		log.Warn().Msg("no catalog api key set, recommendations disabled")
	}
	aggregator := recs.New(catalogClient, cfg.CatalogLocales, time.Now().UnixNano())

	api := server.New(deps.ServerDeps{
		Repo:        repository,
		Cache:       c,
		Signer:      signer.NewHMAC(cfg.CursorSecret),
		Library:     libSvc,
		Scorer:      scorer,
		Recs:        aggregator,
		Offline:     store,
		WriteAPI:    writeapi.New(cfg.WriteAPIURL),
		CORSOrigins: cfg.CORSAllowedOrigins,
		Name:        "tastematch-server",
		StartedAt:   time.Now(),
	})

	// Start background jobs
	jobs.StartCacheRefresh(ctx, libSvc, store, cfg.FreshnessInterval, cfg.OfflineCacheTTL)
	jobs.StartQueueDrain(ctx, store, backend, cfg.DrainInterval)
	jobs.StartLibrarySync(ctx, libSvc, repository, cfg.SyncInterval)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := server.StartHTTP(ctx, addr, api.Router()); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	_, _ = fmt.Fprintln(os.Stderr, "shutting down...")
	time.Sleep(200 * time.Millisecond)
}
