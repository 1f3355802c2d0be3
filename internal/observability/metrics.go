package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NearbyQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mechanico", Name: "nearby_queries_total", Help: "Nearby provider queries by outcome"},
		[]string{"outcome"},
	)
	NearbyLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "mechanico", Name: "nearby_latency_seconds", Help: "Nearby query latency seconds"})

	NearbyResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mechanico",
		Name:      "nearby_results",
		Help:      "Candidates returned per nearby query",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})

	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "mechanico", Name: "bookings_created_total", Help: "Bookings created"})

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mechanico", Name: "booking_transitions_total", Help: "Committed booking transitions by target status"},
		[]string{"to"},
	)

	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "mechanico", Name: "booking_conflicts_total", Help: "Transitions that lost a concurrent commit"})

	PositionsApplied = promauto.NewCounter(prometheus.CounterOpts{Namespace: "mechanico", Name: "positions_applied_total", Help: "Provider position samples applied"})
	PositionsStale   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "mechanico", Name: "positions_stale_total", Help: "Provider position samples dropped as stale"})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mechanico", Name: "events_published_total", Help: "Events published by type"},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{Namespace: "mechanico", Name: "events_dropped_total", Help: "Events dropped on full subscriber buffers"})

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mechanico", Name: "event_sink_errors_total", Help: "Event sink write failures"},
		[]string{"sink"},
	)

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "mechanico", Name: "event_subscribers", Help: "Open event subscriptions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mechanico", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mechanico",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
