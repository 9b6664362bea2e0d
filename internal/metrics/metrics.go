// Package metrics exposes prometheus instrumentation for the towers server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "towers"

// Metrics holds every collector the server updates. Each instance owns its own registry,
// so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	OnlinePlayers   prometheus.Gauge
	ActiveTables    prometheus.Gauge
	ActiveGames     prometheus.Gauge
	SocketEvents    *prometheus.CounterVec
	BroadcastDrops  prometheus.Counter
	PersistFailures *prometheus.CounterVec
	GamesFinished   *prometheus.CounterVec
}

// New creates and registers the collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Players with at least one live connection.",
		}),
		ActiveTables: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tables",
			Help:      "Tables currently held in memory.",
		}),
		ActiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_games",
			Help:      "Tables with a game in progress.",
		}),
		SocketEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_events_total",
			Help:      "Client commands handled, by type and result.",
		}, []string{"type", "result"}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_drops_total",
			Help:      "Outbound messages dropped because a connection buffer was full.",
		}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Persistence jobs that failed after every retry, by job name.",
		}, []string{"job"}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Completed games, by whether they were rated.",
		}, []string{"rated"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OnlinePlayers,
		m.ActiveTables,
		m.ActiveGames,
		m.SocketEvents,
		m.BroadcastDrops,
		m.PersistFailures,
		m.GamesFinished,
	)
	return m
}

// Registry returns the registry the collectors live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
