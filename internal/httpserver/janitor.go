// apps/go-server/internal/httpserver/janitor.go
//
// Expiry sweep for abandoned games.
//   - Games older than SESSION_TTL_MINUTES are exited with reason "expired".
//   - The end-of-game hook does the unmount, same as a manual exit.

package httpserver

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

// RunJanitor exits games older than the session TTL every interval until ctx
// is cancelled. Their tokens have expired, so nobody can reach them anyway.
func (s *Server) RunJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("janitor stopped")
			return
		case <-ticker.C:
			if n := s.sweepExpired(ctx); n > 0 {
				log.Info().Int("expired", n).Msg("expired games unmounted")
			}
		}
	}
}

// sweepExpired exits every game mounted longer than the session TTL.
func (s *Server) sweepExpired(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.SessionTTL)
	n := 0
	for _, g := range s.store.All(ctx) {
		if !g.CreatedAt.Before(cutoff) {
			continue
		}
		if g.ExitWith(game.EndExpired) {
			n++
		}
	}
	return n
}
