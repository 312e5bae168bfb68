// apps/go-server/internal/httpserver/live.go
//
// Live snapshot stream over websockets.
//   - liveHub fans each game's OnChange snapshots out to its subscribers.
//   - GET /game/{id}/ws upgrades, sends the current snapshot, then every change.
//   - Streams close with a normal closure when the game is unmounted.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	subscriberBuffer = 32
)

// liveHub fans game snapshots out to websocket subscribers, per game.
type liveHub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	send chan []byte
}

func newLiveHub() *liveHub {
	return &liveHub{subs: make(map[string]map[*subscriber]struct{})}
}

// subscribe registers a stream for gameID with first as its opening frame.
func (h *liveHub) subscribe(gameID string, first []byte) *subscriber {
	sub := &subscriber{send: make(chan []byte, subscriberBuffer)}
	sub.send <- first
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[*subscriber]struct{})
	}
	h.subs[gameID][sub] = struct{}{}
	return sub
}

func (h *liveHub) unsubscribe(gameID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[gameID]
	if !ok {
		return
	}
	if _, ok := set[sub]; ok {
		delete(set, sub)
		close(sub.send)
	}
	if len(set) == 0 {
		delete(h.subs, gameID)
	}
}

// publish is the games' OnChange hook. Slow subscribers drop frames rather
// than stall the game.
func (h *liveHub) publish(snap game.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Str("gameId", snap.GameID).Msg("marshal snapshot")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[snap.GameID] {
		select {
		case sub.send <- data:
		default:
			log.Warn().Str("gameId", snap.GameID).Msg("live subscriber lagging, frame dropped")
		}
	}
}

// closeGame ends every stream for a game that has been unmounted.
func (h *liveHub) closeGame(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[gameID] {
		close(sub.send)
	}
	delete(h.subs, gameID)
}

func (h *liveHub) count(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleLive streams snapshots of one game until it is unmounted or the
// client goes away. The first frame is the current snapshot.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	g := gameFrom(r)

	// Subscribe before the handshake so no change between the two is lost.
	var sub *subscriber
	g.Watch(func(snap game.Snapshot) {
		sub = s.live.subscribe(g.ID, encodeSnapshot(snap))
	})
	if _, err := s.store.Get(r.Context(), g.ID); err != nil {
		// Unmounted since the token check; closeGame will never reach sub.
		s.live.unsubscribe(g.ID, sub)
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}

	up := upgrader
	up.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == s.cfg.ClientOrigin
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.live.unsubscribe(g.ID, sub)
		log.Warn().Err(err).Str("gameId", g.ID).Msg("websocket upgrade")
		return
	}

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, sub, done)
	s.live.unsubscribe(g.ID, sub)
}

// readPump discards client frames and keeps the read deadline fresh.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub *subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game ended"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func encodeSnapshot(s game.Snapshot) []byte {
	b, _ := json.Marshal(s)
	return b
}
