// apps/go-server/internal/httpserver/server.go
//
// HTTP host for the Memory game.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/settings", "/metrics".
//   - Mounting games (POST /game/new) and the token-gated per-game routes.
//   - Unmounting a game when its end-of-game hook fires.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so the token cookie works).
//   - The websocket route sits outside the timeout group: it is long-lived.

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/config"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/metrics"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
)

// Server bundles router, mounted-game store, and the host's collaborators.
type Server struct {
	r        *chi.Mux
	cfg      *config.Config
	store    store.Store
	alphabet []string
	metrics  *metrics.Metrics
	live     *liveHub
	sched    game.Scheduler
	now      func() time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithScheduler sets the scheduler handed to every mounted game.
func WithScheduler(s game.Scheduler) Option {
	return func(srv *Server) { srv.sched = s }
}

// WithClock overrides time.Now for token issuing and expiry sweeps.
func WithClock(now func() time.Time) Option {
	return func(srv *Server) { srv.now = now }
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg *config.Config, st store.Store, alphabet []string, m *metrics.Metrics, opts ...Option) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		store:    st,
		alphabet: append([]string(nil), alphabet...),
		metrics:  m,
		live:     newLiveHub(),
		sched:    game.RealScheduler{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(s.cors)          // credentials-friendly CORS

	// Live stream: no handler timeout.
	s.r.With(s.requireGameToken()).Get("/game/{id}/ws", s.handleLive)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"memory-go","endpoints":["/health","POST /game/new","/game/{id}/*","/metrics"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

		// Placeholder; there are no settings yet.
		r.Get("/settings", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"message":"Settings coming soon"}`))
		})

		s.mountGame(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Router exposes the internal router (served by main, and used by tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ lifecycle ----------------------------------

// mount creates a game wired to this host and registers it.
func (s *Server) mount(ctx context.Context) (*game.Game, error) {
	var g *game.Game
	g = game.New(s.alphabet, game.Options{
		MismatchDelay: s.cfg.MismatchDelay,
		Scheduler:     s.sched,
		OnChange:      s.live.publish,
		OnEnd:         func(reason game.EndReason) { s.unmount(g.ID, string(reason)) },
	})
	if err := s.store.Save(ctx, g); err != nil {
		return nil, err
	}
	s.metrics.GamesMounted.Inc()
	s.metrics.GamesActive.Inc()
	log.Info().Str("gameId", g.ID).Int("pairs", g.Pairs()).Msg("game mounted")
	return g, nil
}

// unmount is the host side of the end-of-game hook: it tears the game down.
func (s *Server) unmount(id, reason string) {
	if err := s.store.Delete(context.Background(), id); err != nil {
		log.Warn().Err(err).Str("gameId", id).Msg("unmount")
		return
	}
	s.live.closeGame(id)
	s.metrics.GamesEnded.WithLabelValues(reason).Inc()
	s.metrics.GamesActive.Dec()
	log.Info().Str("gameId", id).Str("reason", reason).Msg("game ended")
}
