package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pass metrics
	PassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roller_passes_total",
			Help: "Total number of reconciliation passes by trigger",
		},
		[]string{"trigger"},
	)

	PassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roller_pass_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Group metrics
	GroupsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roller_groups_reconciled_total",
			Help: "Total number of per-group reconciliations by result",
		},
		[]string{"result"},
	)

	GroupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roller_group_duration_seconds",
			Help:    "Per-group reconciliation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	GroupsAwaitingHealth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "roller_groups_awaiting_health",
			Help: "Number of groups mid-replacement waiting for instances to settle",
		},
	)

	// Planner metrics
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roller_decisions_total",
			Help: "Total number of planner decisions by decision",
		},
		[]string{"decision"},
	)

	StaleInstances = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roller_stale_instances",
			Help: "Number of stale instances observed per group",
		},
		[]string{"group"},
	)

	// Provider metrics
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roller_provider_calls_total",
			Help: "Total number of provider API calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	// Trigger metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roller_notifications_total",
			Help: "Total number of notifications received by disposition",
		},
		[]string{"disposition"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(PassesTotal)
	prometheus.MustRegister(PassDuration)
	prometheus.MustRegister(GroupsReconciled)
	prometheus.MustRegister(GroupDuration)
	prometheus.MustRegister(GroupsAwaitingHealth)
	prometheus.MustRegister(DecisionsTotal)
	prometheus.MustRegister(StaleInstances)
	prometheus.MustRegister(ProviderCallsTotal)
	prometheus.MustRegister(NotificationsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
