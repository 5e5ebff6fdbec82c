package library

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tastematch-server/internal/model"
	"tastematch-server/internal/offline"
	"tastematch-server/internal/repos"
)

// Backend is the slice of the realtime database client the service
// needs. *realtime.Client satisfies it.
type Backend interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Reachable(ctx context.Context) bool
}

// Service materializes user libraries. Reads go through the offline
// cache first, then the realtime backend; decoded items are mirrored
// into Postgres best-effort so paging and scoring queries stay local.
type Service struct {
	backend  Backend
	offline  *offline.Store
	repo     *repos.Repository
	cacheTTL time.Duration
}

func New(backend Backend, off *offline.Store, repo *repos.Repository, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = offline.DefaultTTL
	}
	return &Service{backend: backend, offline: off, repo: repo, cacheTTL: cacheTTL}
}

// Backend paths for a user's collections.
func seriesPath(userID string) string { return fmt.Sprintf("users/%s/serien", userID) }
func moviesPath(userID string) string { return fmt.Sprintf("users/%s/movies", userID) }

// Load returns a user's fully materialized library. A collection whose
// backend read fails and has no cached copy comes back empty; the
// method reserves errors for the degenerate case where nothing could be
// loaded at all and the mirror is empty too.
func (s *Service) Load(ctx context.Context, userID string) (model.Library, error) {
	series, seriesErr := s.collection(ctx, seriesPath(userID), model.KindSeries)
	movies, moviesErr := s.collection(ctx, moviesPath(userID), model.KindMovie)

	lib := model.Library{UserID: userID, Series: series, Movies: movies}
	if seriesErr == nil && moviesErr == nil {
		s.mirror(ctx, userID, lib)
		return lib, nil
	}
	if seriesErr != nil && moviesErr != nil {
		// Backend unreachable and cache cold: fall back to the mirror.
		mirrored, err := s.LoadMirror(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("mirror fallback failed")
			return model.Library{UserID: userID}, seriesErr
		}
		return mirrored, nil
	}
	// One half loaded; serve the partial library.
	if seriesErr != nil {
		log.Warn().Err(seriesErr).Str("user_id", userID).Msg("series load failed, serving partial library")
	}
	if moviesErr != nil {
		log.Warn().Err(moviesErr).Str("user_id", userID).Msg("movies load failed, serving partial library")
	}
	return lib, nil
}

// LoadMirror reads a user's library from the Postgres mirror only.
func (s *Service) LoadMirror(ctx context.Context, userID string) (model.Library, error) {
	if s.repo == nil {
		return model.Library{UserID: userID}, nil
	}
	return s.repo.Libraries.GetLibrary(ctx, userID)
}

// Sync refreshes the mirror for one user straight from the backend,
// bypassing cache staleness. Used by the periodic sync job.
func (s *Service) Sync(ctx context.Context, userID string) error {
	lib, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}
	if s.repo == nil {
		return nil
	}
	return s.repo.Libraries.ReplaceLibrary(ctx, userID, lib)
}

// RefreshPath re-fetches one cached backend path and replaces the
// cached payload only if it changed. Used by the freshness checker.
func (s *Service) RefreshPath(ctx context.Context, path string) (bool, error) {
	raw, err := s.backend.Get(ctx, path)
	if err != nil {
		return false, err
	}
	return s.offline.Refresh(path, raw)
}

// collection loads one backend collection through the offline cache.
func (s *Service) collection(ctx context.Context, path, kind string) ([]model.LibraryItem, error) {
	if raw, ok := s.offline.Get(path); ok {
		return model.DecodeLibraryItems(raw, kind), nil
	}
	raw, err := s.backend.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.offline.Set(path, raw, s.cacheTTL); err != nil {
		log.Error().Err(err).Str("path", path).Msg("offline cache write failed")
	}
	return model.DecodeLibraryItems(raw, kind), nil
}

func (s *Service) mirror(ctx context.Context, userID string, lib model.Library) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Libraries.ReplaceLibrary(ctx, userID, lib); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("library mirror write failed")
	}
}
