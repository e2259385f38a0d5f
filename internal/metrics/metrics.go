package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service side.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arise",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by method, route and status.",
	}, []string{"method", "route", "status"})

	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arise",
		Name:      "sessions_started_total",
		Help:      "Attendance sessions started.",
	})

	MarksRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arise",
		Name:      "marks_recorded_total",
		Help:      "Presence marks accepted, by method.",
	}, []string{"method"})

	Heartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arise",
		Name:      "device_heartbeats_total",
		Help:      "Device heartbeats received.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arise",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)

// Teacher console side.
var (
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arise",
		Subsystem: "live",
		Name:      "poll_ticks_total",
		Help:      "Reconciliation ticks, by fetch and result.",
	}, []string{"fetch", "result"})

	Unmarked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arise",
		Subsystem: "live",
		Name:      "unmarked_students",
		Help:      "Students still unmarked in the live session.",
	})
)
