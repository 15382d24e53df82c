package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	OverpassRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overpass_requests_total",
		Help: "Overpass queries by outcome.",
	}, []string{"outcome"})

	OverpassRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "overpass_request_duration_seconds",
		Help:    "Overpass query latency.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	EnrichmentJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_jobs_total",
		Help: "POI enrichment jobs by terminal status.",
	}, []string{"status"})

	EnrichmentJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrichment_job_duration_seconds",
		Help:    "Wall time of POI enrichment jobs from start to finish.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
	})

	EnrichmentQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enrichment_queue_depth",
		Help: "POI enrichment jobs waiting for a worker.",
	})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Requests rejected by the rate limiter by route class.",
	}, []string{"class"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// NewMetricsMiddleware records request counts and latency labelled by the
// matched ServeMux pattern.
func NewMetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
			HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
