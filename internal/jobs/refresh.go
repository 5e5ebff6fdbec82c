package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tastematch-server/internal/library"
	"tastematch-server/internal/offline"
)

// StartCacheRefresh starts the periodic freshness checker: every
// interval it re-fetches cached backend paths whose last check is older
// than staleAfter, replacing a payload only when it actually changed.
func StartCacheRefresh(ctx context.Context, svc *library.Service, store *offline.Store, interval, staleAfter time.Duration) {
	if svc == nil || store == nil {
		log.Warn().Msg("offline layer not configured; skipping cache refresh job")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshOnce(ctx, svc, store, staleAfter)
			}
		}
	}()
}

func refreshOnce(ctx context.Context, svc *library.Service, store *offline.Store, staleAfter time.Duration) {
	stale := store.StalePaths(staleAfter)
	if len(stale) == 0 {
		return
	}
	changed := 0
	for _, path := range stale {
		if ctx.Err() != nil {
			return
		}
		didChange, err := svc.RefreshPath(ctx, path)
		if err != nil {
			// Freshness is best-effort: the entry stays as-is and the
			// next pass tries again.
			log.Debug().Err(err).Str("path", path).Msg("freshness check failed")
			continue
		}
		if didChange {
			changed++
		}
	}
	log.Info().Int("checked", len(stale)).Int("changed", changed).Msg("cache freshness pass completed")
}
