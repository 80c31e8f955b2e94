package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for monitoring the order lifecycle engine
var (
	OrderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Total number of committed order status transitions",
		},
		[]string{"status"},
	)

	PointsEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_ledger_entries_total",
			Help: "Total number of points ledger entries written",
		},
		[]string{"action"},
	)

	NotificationsPersistedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_persisted_total",
			Help: "Total number of notifications persisted",
		},
	)

	NotificationsPushedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_pushed_total",
			Help: "Total number of notifications delivered to a live session",
		},
	)

	NotificationsMissedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_missed_total",
			Help: "Total number of notifications with no live session to deliver to",
		},
	)

	ExpirySweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_sweep_runs_total",
			Help: "Total number of expiry sweep runs",
		},
	)

	PointsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "points_expired_total",
			Help: "Total number of loyalty points expired by the sweeper",
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(OrderTransitionsTotal)
	prometheus.MustRegister(PointsEntriesTotal)
	prometheus.MustRegister(NotificationsPersistedTotal)
	prometheus.MustRegister(NotificationsPushedTotal)
	prometheus.MustRegister(NotificationsMissedTotal)
	prometheus.MustRegister(ExpirySweepRunsTotal)
	prometheus.MustRegister(PointsExpiredTotal)
}
