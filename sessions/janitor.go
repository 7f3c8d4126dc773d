package sessions

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunJanitor removes expired sessions every interval until ctx is done.
func RunJanitor(ctx context.Context, repo Repo, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := repo.DeleteExpired(ctx)
			if err != nil {
				log.Err(err).Msg("session janitor: failed to delete expired sessions")
				continue
			}
			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("session janitor: expired sessions removed")
			}
		}
	}
}
