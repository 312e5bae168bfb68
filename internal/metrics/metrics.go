// Package metrics holds the Prometheus collectors for the game host.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of collectors the host updates, on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	GamesMounted prometheus.Counter
	GamesEnded   *prometheus.CounterVec // by reason: won, exited, expired
	GamesActive  prometheus.Gauge
	Flips        *prometheus.CounterVec // by outcome
	Resets       prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		GamesMounted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_games_mounted_total",
			Help: "Games mounted by the host.",
		}),
		GamesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_games_ended_total",
			Help: "Games unmounted, by end reason.",
		}, []string{"reason"}),
		GamesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_games_active",
			Help: "Games currently mounted.",
		}),
		Flips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_flips_total",
			Help: "Card flips, by outcome.",
		}, []string{"outcome"}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_resets_total",
			Help: "Board resets.",
		}),
	}
	m.Registry.MustRegister(m.GamesMounted, m.GamesEnded, m.GamesActive, m.Flips, m.Resets)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
