// apps/go-server/internal/httpserver/routes_game.go
//
// HTTP routes for playing a mounted game.
//   - POST /game/new          → mount a game, returns id + session token + snapshot
//   - GET  /game/{id}         → current snapshot
//   - POST /game/{id}/flip    → flip one card
//   - POST /game/{id}/reset   → deal a fresh board
//   - POST /game/{id}/exit    → leave early; the game is unmounted
//   - GET  /game/{id}/ws      → live snapshot stream (registered in server.go)
//
// Every /game/{id} route requires the token issued at mount time.

package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

// mountGame registers the /game routes.
func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/new", s.handleNewGame)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Use(s.requireGameToken())
		r.Get("/", s.handleSnapshot)
		r.Post("/flip", s.handleFlip)
		r.Post("/reset", s.handleReset)
		r.Post("/exit", s.handleExit)
	})
}

// -----------------------------------------------------------------------------
// /game/new

type newGameRes struct {
	GameID   string        `json:"gameId"`
	Token    string        `json:"token"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// handleNewGame mounts a game and hands the caller its session token,
// both in the body and as a cookie.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.mount(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("mount game")
		http.Error(w, `{"error":"mount_failed"}`, http.StatusInternalServerError)
		return
	}
	tok, exp, err := s.signGameToken(g.ID)
	if err != nil {
		log.Error().Err(err).Str("gameId", g.ID).Msg("sign token")
		g.Exit()
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	s.setTokenCookie(w, tok, exp)
	_ = json.NewEncoder(w).Encode(newGameRes{GameID: g.ID, Token: tok, Snapshot: g.Snapshot()})
}

// -----------------------------------------------------------------------------
// /game/{id}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	g := gameFrom(r)
	_ = json.NewEncoder(w).Encode(g.Snapshot())
}

type flipReq struct {
	CardID *int `json:"cardId"`
}

type flipRes struct {
	Outcome  game.Outcome  `json:"outcome"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// handleFlip applies one click. Illegal clicks are not errors: they come back
// with outcome "ignored" and an unchanged snapshot.
func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request) {
	var req flipReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CardID == nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	g := gameFrom(r)
	out := g.Flip(*req.CardID)
	s.metrics.Flips.WithLabelValues(string(out)).Inc()
	log.Debug().Str("gameId", g.ID).Int("cardId", *req.CardID).Str("outcome", string(out)).Msg("flip")

	_ = json.NewEncoder(w).Encode(flipRes{Outcome: out, Snapshot: g.Snapshot()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	g := gameFrom(r)
	g.Reset()
	s.metrics.Resets.Inc()
	log.Debug().Str("gameId", g.ID).Msg("reset")
	_ = json.NewEncoder(w).Encode(g.Snapshot())
}

// handleExit ends the game early; the end-of-game hook unmounts it.
func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	g := gameFrom(r)
	ended := g.Exit()
	_ = json.NewEncoder(w).Encode(map[string]bool{"ended": ended})
}
