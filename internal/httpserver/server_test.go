package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/memory/apps/go-server/internal/config"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/metrics"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
	"github.com/robalobadob/memory/apps/go-server/internal/testutil"
)

// Alphabet [A,B]: card ids 0,1 are A and 2,3 are B whatever the shuffle.
var testAlphabet = []string{"A", "B"}

type testEnv struct {
	srv     *Server
	sched   *testutil.ManualScheduler
	store   store.Store
	metrics *metrics.Metrics

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Port:          "0",
		LogLevel:      "info",
		ClientOrigin:  "http://localhost:5173",
		MismatchDelay: 1500 * time.Millisecond,
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
	}
	env := &testEnv{
		sched:   &testutil.ManualScheduler{},
		store:   store.NewMemoryStore(),
		metrics: metrics.New(),
		now:     time.Now(),
	}
	env.srv = New(cfg, env.store, testAlphabet, env.metrics,
		WithScheduler(env.sched), WithClock(env.clock))
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) mountGame(t *testing.T) newGameRes {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/game/new", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res newGameRes
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func (e *testEnv) flip(t *testing.T, ng newGameRes, cardID int) flipRes {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/game/"+ng.GameID+"/flip", ng.Token, map[string]int{"cardId": cardID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res flipRes
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func TestHealthAndPlaceholders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/settings", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Settings coming soon"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewGame(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/game/new", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	var res newGameRes
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.NotEmpty(t, res.GameID)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, res.GameID, res.Snapshot.GameID)
	assert.Equal(t, game.PhaseIdle, res.Snapshot.Phase)
	assert.Equal(t, 2, res.Snapshot.Pairs)
	require.Len(t, res.Snapshot.Cards, 4)
	for _, c := range res.Snapshot.Cards {
		assert.Empty(t, c.Value, "face-down values are not sent")
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, res.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	assert.Equal(t, 1, env.store.Len())
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.GamesMounted))
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.GamesActive))
}

func TestGameRoutes_Token(t *testing.T) {
	env := newTestEnv(t)
	first := env.mountGame(t)
	second := env.mountGame(t)

	tests := []struct {
		name  string
		token string
		code  int
	}{
		{name: "no token", token: "", code: http.StatusUnauthorized},
		{name: "garbage token", token: "not.a.jwt", code: http.StatusUnauthorized},
		{name: "token for another game", token: second.Token, code: http.StatusUnauthorized},
		{name: "own token", token: first.Token, code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/game/"+first.GameID, tt.token, nil)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestGameRoutes_TokenCookie(t *testing.T) {
	env := newTestEnv(t)
	ng := env.mountGame(t)

	req := httptest.NewRequest(http.MethodGet, "/game/"+ng.GameID, nil)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: ng.Token})
	rec := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGameRoutes_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ng := env.mountGame(t)

	env.advance(2 * time.Hour)

	rec := env.do(t, http.MethodGet, "/game/"+ng.GameID, ng.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFlip_WinUnmountsGame(t *testing.T) {
	env := newTestEnv(t)
	ng := env.mountGame(t)

	assert.Equal(t, game.OutcomeFlipped, env.flip(t, ng, 0).Outcome)

	res := env.flip(t, ng, 1)
	assert.Equal(t, game.OutcomeMatched, res.Outcome)
	assert.Equal(t, 1, res.Snapshot.Matches)
	assert.False(t, res.Snapshot.Locked)

	env.flip(t, ng, 2)
	res = env.flip(t, ng, 3)
	assert.Equal(t, game.OutcomeWon, res.Outcome)
	assert.True(t, res.Snapshot.Finished)
	assert.Equal(t, game.CompletionMessage, res.Snapshot.Message)
	assert.Equal(t, 2, res.Snapshot.Matches)
	for _, c := range res.Snapshot.Cards {
		assert.True(t, c.Matched)
		assert.NotEmpty(t, c.Value)
	}

	// The end-of-game hook unmounted it.
	assert.Equal(t, 0, env.store.Len())
	rec := env.do(t, http.MethodGet, "/game/"+ng.GameID, ng.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.GamesEnded.WithLabelValues("won")))
	assert.Equal(t, 0.0, promtest.ToFloat64(env.metrics.GamesActive))
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.Flips.WithLabelValues("won")))
}

func TestFlip_MismatchResolvesLater(t *testing.T) {
	env := newTestEnv(t)
	ng := env.mountGame(t)

	env.flip(t, ng, 0)
	res := env.flip(t, ng, 2)
	assert.Equal(t, game.OutcomeMismatched, res.Outcome)
	assert.Equal(t, game.PhaseResolving, res.Snapshot.Phase)
	assert.True(t, res.Snapshot.Locked)

	res = env.flip(t, ng, 1)
	assert.Equal(t, game.OutcomeIgnored, res.Outcome)

	pending := env.sched.Last()
	require.NotNil(t, pending)
	assert.Equal(t, 1500*time.Millisecond, pending.Delay)
	pending.Fire()

	rec := env.do(t, http.MethodGet, "/game/"+ng.GameID, ng.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, game.PhaseIdle, snap.Phase)
	assert.False(t, snap.Locked)
	assert.Empty(t, snap.Unresolved)
	for _, c := range snap.Cards {
		assert.False(t, c.Flipped)
	}
}

func TestFlip_BadBody(t *testing.T) {
	env := newTestEnv(t)
	ng := env.mountGame(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "missing card id", body: map[string]string{}},
		{name: "wrong type", body: map[string]string{"cardId": "zero"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/game/"+ng.GameID+"/flip", ng.Token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestReset_DuringResolution(t *testing.T) {
	env := newTestEnv(t)
	ng := env.mountGame(t)
	env.flip(t, ng, 0)
	env.flip(t, ng, 2)
	pending := env.sched.Last()

	rec := env.do(t, http.MethodPost, "/game/"+ng.GameID+"/reset", ng.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))

	assert.True(t, pending.Stopped())
	assert.Equal(t, game.PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Matches)
	assert.False(t, snap.Locked)
	for _, c := range snap.Cards {
		assert.False(t, c.Flipped)
		assert.False(t, c.Matched)
	}
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.Resets))

	// Game keeps playing after the reset.
	assert.Equal(t, game.OutcomeFlipped, env.flip(t, ng, 3).Outcome)
}

func TestExit(t *testing.T) {
	env := newTestEnv(t)
	ng := env.mountGame(t)

	rec := env.do(t, http.MethodPost, "/game/"+ng.GameID+"/exit", ng.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ended":true}`, rec.Body.String())

	assert.Equal(t, 0, env.store.Len())
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.GamesEnded.WithLabelValues("exited")))

	rec = env.do(t, http.MethodPost, "/game/"+ng.GameID+"/exit", ng.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv(t)
	env.mountGame(t)
	env.mountGame(t)

	assert.Equal(t, 0, env.srv.sweepExpired(context.Background()))
	assert.Equal(t, 2, env.store.Len())

	env.advance(2 * time.Hour)

	assert.Equal(t, 2, env.srv.sweepExpired(context.Background()))
	assert.Equal(t, 0, env.store.Len())
	assert.Equal(t, 2.0, promtest.ToFloat64(env.metrics.GamesEnded.WithLabelValues("expired")))
	assert.Equal(t, 0.0, promtest.ToFloat64(env.metrics.GamesEnded.WithLabelValues("exited")))
}

func TestSweepExpired_RacingWinKeepsReason(t *testing.T) {
	for i := 0; i < 50; i++ {
		env := newTestEnv(t)
		ng := env.mountGame(t)
		env.flip(t, ng, 0)
		env.flip(t, ng, 1)
		env.flip(t, ng, 2)
		env.advance(2 * time.Hour)

		g, err := env.store.Get(context.Background(), ng.GameID)
		require.NoError(t, err)

		var (
			wg  sync.WaitGroup
			out game.Outcome
		)
		wg.Add(2)
		go func() { defer wg.Done(); out = g.Flip(3) }()
		go func() { defer wg.Done(); env.srv.sweepExpired(context.Background()) }()
		wg.Wait()

		won := promtest.ToFloat64(env.metrics.GamesEnded.WithLabelValues("won"))
		expired := promtest.ToFloat64(env.metrics.GamesEnded.WithLabelValues("expired"))
		if out == game.OutcomeWon {
			assert.Equal(t, 1.0, won, "run %d", i)
			assert.Equal(t, 0.0, expired, "run %d", i)
		} else {
			assert.Equal(t, 0.0, won, "run %d", i)
			assert.Equal(t, 1.0, expired, "run %d", i)
		}
		assert.Equal(t, 0, env.store.Len())
	}
}

func TestLive_StreamsChangesUntilUnmount(t *testing.T) {
	env := newTestEnv(t)
	ng := env.mountGame(t)

	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + ng.GameID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + ng.Token}})
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	read := func() game.Snapshot {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var snap game.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		return snap
	}

	assert.Equal(t, game.PhaseIdle, read().Phase)

	env.flip(t, ng, 0)
	assert.Equal(t, game.PhaseOneFlipped, read().Phase)

	env.flip(t, ng, 2)
	snap := read()
	assert.Equal(t, game.PhaseResolving, snap.Phase)
	assert.True(t, snap.Locked)

	env.sched.Last().Fire()
	snap = read()
	assert.Equal(t, game.PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Unresolved)

	env.do(t, http.MethodPost, "/game/"+ng.GameID+"/exit", ng.Token, nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestLive_RequiresToken(t *testing.T) {
	env := newTestEnv(t)
	ng := env.mountGame(t)

	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + ng.GameID + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, env.srv.live.count(ng.GameID))
}
