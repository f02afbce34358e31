package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MatchesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_matches_started_total",
			Help: "Matches created after a successful pairing and escrow",
		},
		[]string{"mode"},
	)
	MatchesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_matches_finished_total",
			Help: "Matches that reached a terminal state",
		},
		[]string{"reason"},
	)
	RoundsResolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rps_rounds_resolved_total",
			Help: "Rounds resolved by the round engine",
		},
	)
	ProtocolAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_protocol_anomalies_total",
			Help: "Absorbed protocol violations (duplicate or stale moves)",
		},
		[]string{"kind"},
	)
	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_settlements_total",
			Help: "Settlement attempts by result",
		},
		[]string{"result"},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rps_queue_depth",
			Help: "Players waiting in the public queue",
		},
	)
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rps_ws_connections",
			Help: "Open session transport connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		MatchesStarted,
		MatchesFinished,
		RoundsResolved,
		ProtocolAnomalies,
		Settlements,
		QueueDepth,
		WSConnections,
	)
}
