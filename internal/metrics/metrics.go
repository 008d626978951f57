package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceived tracks webhook events accepted per category
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_events_received_total",
			Help: "Total number of webhook events received",
		},
		[]string{"category"},
	)

	// EventsRejected tracks events rejected before dispatch
	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_events_rejected_total",
			Help: "Total number of webhook events rejected",
		},
		[]string{"reason"},
	)

	// HookExecutions tracks hook executions per hook and terminal status
	HookExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_hook_executions_total",
			Help: "Total number of hook executions",
		},
		[]string{"hook", "status"},
	)

	// HookRetries tracks retry attempts per hook
	HookRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_hook_retries_total",
			Help: "Total number of hook retry attempts",
		},
		[]string{"hook"},
	)

	// DeliveryLatency tracks notifier delivery latency
	DeliveryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookbridge_delivery_latency_seconds",
			Help:    "Notification delivery latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"notifier"},
	)

	// DeliveryErrors tracks delivery failures per notifier and category
	DeliveryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_delivery_errors_total",
			Help: "Total number of notification delivery errors",
		},
		[]string{"notifier", "category"},
	)

	// BreakerTransitions tracks circuit breaker state changes
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"dependency", "state"},
	)

	// QueueDepth tracks the current redelivery queue size
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookbridge_queue_depth",
			Help: "Current number of notifications in the redelivery queue",
		},
	)

	// QueueDelivered tracks notifications drained from the queue
	QueueDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_queue_outcomes_total",
			Help: "Total redelivery queue outcomes",
		},
		[]string{"outcome"},
	)
)
