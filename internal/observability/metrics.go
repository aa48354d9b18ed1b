package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gotogether"

var (
	RequestsSubmitted = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "ride_requests_submitted_total", Help: "Ride requests submitted"})
	GroupsCreated     = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "grouped_rides_created_total", Help: "Grouped rides created"})
	GroupConflicts    = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "grouping_conflicts_total", Help: "Grouping attempts that lost a request claim"})
	GroupTransitions  = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "grouped_ride_transitions_total", Help: "Grouped ride status transitions"},
		[]string{"to"},
	)
	NotificationsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_resolved_total", Help: "Assignment notifications resolved by decision"},
		[]string{"decision"},
	)

	ChatConnections = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "chat_connections_open", Help: "Open chat connections"})
	ChatMessages    = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "chat_messages_total", Help: "Chat messages appended"})
	ChatSlowClosed  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "chat_slow_consumers_closed_total", Help: "Chat connections closed for falling behind"})
	ChatAlerts      = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "chat_alerts_total", Help: "Out-of-band chat alerts by outcome"},
		[]string{"outcome"},
	)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total", Help: "Lifecycle events handed to the broker by outcome"},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
