// Package metrics holds the Prometheus collectors of the proxy.
//
// Metrics:
//   - <ns>_http_requests_total: requests by endpoint and status code
//   - <ns>_http_request_duration_seconds: handler latency
//   - <ns>_completion_requests_total: completion API calls by engine, model, status
//   - <ns>_completion_duration_seconds: completion API latency
//   - <ns>_image_bytes: decoded image bytes per request
//   - <ns>_pdf_text_chars: characters extracted from uploaded PDFs
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	completionRequests *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	imageBytes         prometheus.Histogram
	pdfChars           prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{"endpoint", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"endpoint"},
		),
		completionRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completion_requests_total",
				Help:      "Total number of completion API calls",
			},
			[]string{"engine", "model", "status"},
		),
		completionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "completion_duration_seconds",
				Help:      "Duration of completion API calls in seconds",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120, 180},
			},
			[]string{"engine", "model"},
		),
		imageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_bytes",
			Help:      "Decoded image bytes per inference request",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10), // 1KB .. 256MB
		}),
		pdfChars: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pdf_text_chars",
			Help:      "Characters of text extracted per uploaded PDF",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.completionRequests,
		m.completionDuration,
		m.imageBytes,
		m.pdfChars,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(endpoint string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveCompletion records one completion call; status is "success" or "error".
func (m *Metrics) ObserveCompletion(engine, model, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.completionRequests.WithLabelValues(engine, model, status).Inc()
	m.completionDuration.WithLabelValues(engine, model).Observe(d.Seconds())
}

func (m *Metrics) ObserveImageBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.imageBytes.Observe(float64(n))
}

func (m *Metrics) ObservePDFChars(n int) {
	if m == nil {
		return
	}
	m.pdfChars.Observe(float64(n))
}
