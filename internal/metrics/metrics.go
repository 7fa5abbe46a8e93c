package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recinto",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recinto",
			Name:      "admission_rejections_total",
			Help:      "Reservation requests rejected by admission checks, by reason.",
		},
		[]string{"reason"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recinto",
			Name:      "status_transitions_total",
			Help:      "Applied reservation status transitions.",
		},
		[]string{"from", "to"},
	)

	transitionDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recinto",
			Name:      "status_transition_denials_total",
			Help:      "Denied reservation status transitions, by denial code.",
		},
		[]string{"code"},
	)

	feedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recinto",
			Name:      "change_feed_events_total",
			Help:      "Change events published to the feed, by kind.",
		},
		[]string{"kind"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			rejections,
			transitions,
			transitionDenials,
			feedEvents,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncRejection increments the admission rejection counter for a reason code.
func IncRejection(reason string) {
	rejections.WithLabelValues(reason).Inc()
}

// IncTransition increments the applied transition counter.
func IncTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// IncTransitionDenial increments the denied transition counter for a code.
func IncTransitionDenial(code string) {
	transitionDenials.WithLabelValues(code).Inc()
}

// IncFeedEvent increments the change feed counter for an event kind.
func IncFeedEvent(kind string) {
	feedEvents.WithLabelValues(kind).Inc()
}
