package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	mutations *prometheus.CounterVec
	// classify names the outcome label of a failed store mutation.
	classify func(error) string
}

// NewMetrics registers the HTTP and store collectors. classify may be nil.
func NewMetrics(classify func(error) string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "store_mutations_total",
			Help:      "Store writes by entity, operation and outcome.",
		}, []string{"entity", "op", "outcome"}),
		classify: classify,
	}
	m.registry.MustRegister(m.requests, m.latency, m.mutations,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware counts requests. The route label is the registered path, not
// the raw URL, to keep cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(responseStatus(c, err))).Inc()
			m.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// ObserveMutation records one store write.
func (m *Metrics) ObserveMutation(entity, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if m.classify != nil {
			outcome = m.classify(err)
		}
	}
	m.mutations.WithLabelValues(entity, op, outcome).Inc()
}

// OutcomeClassifier builds a classify function from sentinel errors, e.g.
// {"not_found": ErrNotFound}. Unmatched errors are "error".
func OutcomeClassifier(sentinels map[string]error) func(error) string {
	return func(err error) string {
		for label, target := range sentinels {
			if errors.Is(err, target) {
				return label
			}
		}
		return "error"
	}
}
