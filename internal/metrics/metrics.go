// Package metrics provides the Prometheus instruments of the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "lynx"

// Metrics holds the registered instruments. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	FacetDuration       *prometheus.HistogramVec
	EventTransitions    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers the instruments on reg, or on the default
// registry when reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		FacetDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "facet_duration_seconds",
			Help:      "Time spent computing one facet.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"entity", "facet"}),
		EventTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "event_transitions_total",
			Help:      "Event lifecycle changes by action and resulting status.",
		}, []string{"action", "status"}),
		gatherer: gatherer,
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// FacetObserver returns a callback recording facet durations for entity.
func (m *Metrics) FacetObserver(entity string) func(facet string, elapsed time.Duration) {
	return func(facet string, elapsed time.Duration) {
		if m == nil {
			return
		}
		m.FacetDuration.WithLabelValues(entity, facet).Observe(elapsed.Seconds())
	}
}

// Transition records an event mutation.
func (m *Metrics) Transition(action, status string) {
	if m == nil {
		return
	}
	m.EventTransitions.WithLabelValues(action, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
