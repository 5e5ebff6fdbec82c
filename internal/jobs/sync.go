package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tastematch-server/internal/library"
	"tastematch-server/internal/repos"
)

// StartLibrarySync starts the periodic mirror sync: every interval it
// re-fetches the library of every user already present in the mirror.
// New users enter the mirror through their first library load, so this
// loop only has to keep known users from drifting.
func StartLibrarySync(ctx context.Context, svc *library.Service, repo *repos.Repository, interval time.Duration) {
	if svc == nil || repo == nil {
		log.Warn().Msg("mirror not configured; skipping library sync job")
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
				syncOnce(ctx, svc, repo)
			}
		}
	}()
}

func syncOnce(ctx context.Context, svc *library.Service, repo *repos.Repository) {
	userIDs, err := repo.Libraries.ListUserIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("mirror user listing failed")
		return
	}
	if len(userIDs) == 0 {
		return
	}
	failed := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		if err := svc.Sync(ctx, userID); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("library sync failed")
			failed++
		}
	}
	log.Info().Int("users", len(userIDs)).Int("failed", failed).Msg("library sync pass completed")
}
