// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerEventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_events_dispatched_total",
			Help: "Total number of events dispatched to the background worker",
		},
		[]string{"event"},
	)

	WorkerEventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_events_failed_total",
			Help: "Total number of worker events whose extension ended in error",
		},
		[]string{"event", "error_code"},
	)

	WorkerEventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_event_duration_seconds",
			Help: "Duration of event handling including waitUntil extensions",
		},
		[]string{"event"},
	)

	WorkerEventsInflight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_events_inflight",
			Help: "Number of event extensions still pending",
		},
		[]string{"event"},
	)

	NotificationsShown = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_shown_total",
			Help: "Notifications rendered, by options variant",
		},
		[]string{"variant"},
	)

	PayloadFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_payload_fallbacks_total",
			Help: "Push messages rendered with the default payload",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_generations_evicted_total",
			Help: "Stale cache generations deleted on activation",
		},
	)

	FetchResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_responses_total",
			Help: "Intercepted fetches by response source",
		},
		[]string{"source"},
	)

	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Server-side web push deliveries by outcome",
		},
		[]string{"outcome"},
	)
)
