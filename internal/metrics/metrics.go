// Package metrics exposes the hub's Prometheus counters and histograms:
// bets placed, orders matched, resolution phase-step failures, and WS
// connection count (§10.2). Mounted on the main router alongside the JSON
// API; nothing in this module consumes these beyond /metrics itself.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BetsPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_bets_placed_total",
			Help: "Total number of LMSR bets placed",
		},
		[]string{"outcome"},
	)

	OrdersMatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_orders_matched_total",
			Help: "Total number of P2P order-book fills",
		},
		[]string{"outcome"},
	)

	ResolutionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_resolution_failures_total",
			Help: "Total number of resolution phase-step RPC failures",
		},
		[]string{"phase"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prediction_ws_connections",
			Help: "Current number of connected WebSocket clients",
		},
	)

	BetLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prediction_bet_latency_seconds",
			Help:    "Latency of PlaceBet end to end, including the LMSR quote and database transaction",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(BetsPlaced, OrdersMatched, ResolutionFailures, WSConnections, BetLatency)
}
