package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certmgmt/backend/internal/domain"
)

const namespace = "cert_management"

const (
	OutcomeSuccess   = "success"
	OutcomeNotFound  = "not_found"
	OutcomeInvalid   = "invalid"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

// Metrics owns a private registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	RequestTransitions  *prometheus.CounterVec
	RequestsPerBatch    *prometheus.HistogramVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_transitions_total",
				Help:      "Certificate request operations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		RequestsPerBatch: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bulk_batch_size",
				Help:      "Number of certificate requests submitted per bulk operation.",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"operation"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method, route and status.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m.registry.MustRegister(m.RequestTransitions, m.RequestsPerBatch, m.HTTPRequestDuration)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserveOperation counts one repository operation, classified by its error.
func (m *Metrics) ObserveOperation(operation string, err error) {
	m.RequestTransitions.WithLabelValues(operation, Outcome(err)).Inc()
}

func (m *Metrics) ObserveBatch(operation string, size int) {
	m.RequestsPerBatch.WithLabelValues(operation).Observe(float64(size))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrForbidden):
		return OutcomeForbidden
	default:
		return OutcomeError
	}
}
