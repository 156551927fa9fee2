package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WorkerRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paywave",
			Name:      "settlement_worker_run_total",
			Help:      "Total number of settlement worker runs.",
		},
		[]string{"mode"}, // mode: live/dry_run
	)

	ClaimTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paywave",
			Name:      "settlement_claim_total",
			Help:      "Total number of claim attempts.",
		},
		[]string{"outcome"}, // outcome: won/lost/error
	)

	BroadcastTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paywave",
			Name:      "settlement_broadcast_total",
			Help:      "Total number of broadcast attempts.",
		},
		[]string{"network", "outcome"}, // outcome: ok/failed
	)

	RefundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paywave",
			Name:      "settlement_refund_total",
			Help:      "Total number of refund credits.",
		},
		[]string{"outcome"}, // outcome: credited/skipped
	)
)

func MustRegister() {
	prometheus.MustRegister(WorkerRunTotal, ClaimTotal, BroadcastTotal, RefundTotal)
}
