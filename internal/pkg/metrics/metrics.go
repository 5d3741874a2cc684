// Package metrics holds the Prometheus collectors of the dispatch service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Result label values.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var (
	OrderWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_order_writes_total",
			Help: "Order writes sent to the store, by target status and result",
		},
		[]string{"status", "result"},
	)

	AcceptRacesLostTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_accept_races_lost_total",
			Help: "Claims rejected by the store because another courier won",
		},
	)

	RefetchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_refetch_failures_total",
			Help: "Forced snapshot re-fetches that failed after a mutation",
		},
	)

	SnapshotsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_snapshots_delivered_total",
			Help: "Snapshots turned into visible order list updates",
		},
	)

	SnapshotsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_snapshots_dropped_total",
			Help: "Snapshots dropped because a fresher one was already seen",
		},
	)

	SessionsRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_sessions_revoked_total",
			Help: "Courier sessions terminated because approval was withdrawn",
		},
	)

	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_active_subscriptions",
			Help: "Order feed subscriptions currently open",
		},
	)

	ValidityCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_validity_check_duration_seconds",
			Help:    "Duration of courier approval checks",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(OrderWritesTotal)
	prometheus.MustRegister(AcceptRacesLostTotal)
	prometheus.MustRegister(RefetchFailuresTotal)
	prometheus.MustRegister(SnapshotsDeliveredTotal)
	prometheus.MustRegister(SnapshotsDroppedTotal)
	prometheus.MustRegister(SessionsRevokedTotal)
	prometheus.MustRegister(ActiveSubscriptions)
	prometheus.MustRegister(ValidityCheckDuration)
}
