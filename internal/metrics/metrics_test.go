package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.GamesMounted.Inc()
	m.GamesActive.Inc()
	m.Flips.WithLabelValues("matched").Inc()
	m.Flips.WithLabelValues("matched").Inc()
	m.GamesEnded.WithLabelValues("won").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GamesMounted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GamesActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Flips.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GamesEnded.WithLabelValues("won")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Resets))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Resets.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "memory_resets_total 1")
	assert.Contains(t, string(body), "memory_games_active 0")
}
