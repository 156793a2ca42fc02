// Package metrics exposes Prometheus metrics for admissions and requests.
package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/OkutaniDaichi0106/h3mtls/h3mtls"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "rejected"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	admissions *prometheus.CounterVec
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New creates the collectors under namespace and registers them, together with
// the Go and process collectors, in a new registry.
//
// Metrics registered:
//   - {namespace}_admissions_total{side, outcome} - handshake admission decisions
//   - {namespace}_requests_total{code, method} - completed HTTP/3 requests
//   - {namespace}_request_duration_seconds{method} - HTTP/3 request latency
func New(namespace string) (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Handshake admission decisions by side and outcome",
		}, []string{"side", "outcome"}),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completed HTTP/3 requests by status code and method",
		}, []string{"code", "method"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP/3 requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	for _, c := range []prometheus.Collector{
		m.admissions,
		m.requests,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registerCollector(m.registry, c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return fmt.Errorf("metrics: register collector: %w", err)
	}
	return nil
}

// ObserveAdmission counts one admission decision. It has the signature of
// h3mtls.AdmissionFunc.
func (m *Metrics) ObserveAdmission(side h3mtls.Side, _ string, err error) {
	outcome := OutcomeAdmitted
	if err != nil {
		outcome = OutcomeRejected
	}
	m.admissions.WithLabelValues(side.String(), outcome).Inc()
}

var _ h3mtls.AdmissionFunc = (*Metrics)(nil).ObserveAdmission

// Middleware counts and times the requests served by next.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(m.duration,
		promhttp.InstrumentHandlerCounter(m.requests, next),
	)
}

// Handler serves the metrics in the Prometheus exposition format on /metrics.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Registry returns the registry the collectors are registered in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
