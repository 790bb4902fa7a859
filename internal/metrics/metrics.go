// Package metrics exposes Prometheus collectors for decisions and games.
package metrics

import (
	"net/http"

	"github.com/ashureev/neurochess/internal/agent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	decisions        *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	attempts         prometheus.Histogram
	decisionDuration prometheus.Histogram
	attemptDuration  prometheus.Histogram
	games            *prometheus.CounterVec
	activeGames      prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neurochess_decisions_total",
			Help: "Agent move decisions by outcome (accepted or fallback).",
		}, []string{"outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neurochess_rejections_total",
			Help: "Rejected strategist proposals by kind.",
		}, []string{"kind"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "neurochess_decision_attempts",
			Help:    "Strategist attempts per decision.",
			Buckets: []float64{1, 2, 3, 5, 8, 11},
		}),
		decisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "neurochess_decision_duration_seconds",
			Help:    "Wall time of a full decision including commentary.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "neurochess_attempt_duration_seconds",
			Help:    "Wall time of one strategist attempt.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neurochess_games_finished_total",
			Help: "Finished games by result.",
		}, []string{"result"}),
		activeGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "neurochess_active_games",
			Help: "Live websocket games.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.decisions,
		m.rejections,
		m.attempts,
		m.decisionDuration,
		m.attemptDuration,
		m.games,
		m.activeGames,
	)
	return m
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns agent hooks that record decisions and attempts.
func (m *Metrics) Hooks() agent.Hooks {
	return agent.Hooks{
		OnAttempt: func(e agent.AttemptEvent) {
			m.attemptDuration.Observe(e.Duration.Seconds())
			if e.Rejection != nil {
				m.rejections.WithLabelValues(e.Rejection.Kind.String()).Inc()
			}
		},
		OnDecision: func(d agent.Decision) {
			outcome := "accepted"
			if d.Fallback {
				outcome = "fallback"
			}
			m.decisions.WithLabelValues(outcome).Inc()
			m.attempts.Observe(float64(d.Attempts))
			m.decisionDuration.Observe(d.Duration.Seconds())
		},
	}
}

// GameStarted records a new live game.
func (m *Metrics) GameStarted() { m.activeGames.Inc() }

// GameClosed records a live game going away, finished or not.
func (m *Metrics) GameClosed() { m.activeGames.Dec() }

// GameFinished records a game reaching a result such as "1-0".
func (m *Metrics) GameFinished(result string) {
	m.games.WithLabelValues(result).Inc()
}
