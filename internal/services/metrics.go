package services

import "github.com/prometheus/client_golang/prometheus"

// Reconciliation outcomes used as the "outcome" label.
const (
	outcomeApplied   = "applied"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeNotFound  = "order_not_found"
	outcomeMalformed = "malformed"
	outcomeFailed    = "failed"
)

var (
	// webhookEvents counts processed provider events by type and outcome.
	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "webhook_events_total",
			Help:      "Payment provider events handled, by event type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	// reconcileLat records time spent reconciling one event.
	reconcileLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "webhook_reconcile_duration_seconds",
			Help:      "Duration of payment event reconciliation in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(webhookEvents, reconcileLat)
}
