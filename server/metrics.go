package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	connections      prometheus.Gauge
	connectsRejected *prometheus.CounterVec
	moves            *prometheus.CounterVec
	chats            *prometheus.CounterVec
	broadcasts       prometheus.Counter
	sendsDropped     prometheus.Counter
	trades           *prometheus.CounterVec
	persistFailures  *prometheus.CounterVec
	eventSeconds     prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jumpi", Name: "players_online",
			Help: "Players currently bound to a connection.",
		}),
		connectsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jumpi", Name: "connects_rejected_total",
			Help: "Connection attempts refused, by reason.",
		}, []string{"reason"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jumpi", Name: "moves_total",
			Help: "Position updates, by result.",
		}, []string{"result"}),
		chats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jumpi", Name: "chat_messages_total",
			Help: "Chat messages, by result.",
		}, []string{"result"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jumpi", Name: "player_broadcasts_total",
			Help: "updatePlayers snapshots sent.",
		}),
		sendsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jumpi", Name: "sends_dropped_total",
			Help: "Outbound messages dropped on a full send queue.",
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jumpi", Name: "trades_total",
			Help: "Trades closed, by outcome.",
		}, []string{"outcome"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jumpi", Name: "persist_failures_total",
			Help: "Failed store writes, by job.",
		}, []string{"job"}),
		eventSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "jumpi", Name: "event_duration_seconds",
			Help:    "Time spent handling one world event.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.connectsRejected,
		m.moves,
		m.chats,
		m.broadcasts,
		m.sendsDropped,
		m.trades,
		m.persistFailures,
		m.eventSeconds,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// reject counts a refused connection attempt.
func (m *Metrics) reject(reason string) {
	m.connectsRejected.WithLabelValues(reason).Inc()
}
