package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

// Absence alert outcomes used as metric labels.
const (
	AlertOutcomeCreated  = "created"
	AlertOutcomeUpdated  = "updated"
	AlertOutcomeResolved = "resolved"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheHitRatio    prometheus.Gauge
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	jobDuration      *prometheus.HistogramVec
	jobRuns          *prometheus.CounterVec
	chargesGenerated prometheus.Counter
	absenceAlerts    *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	chargeCount          uint64
	alertsCreated        uint64
	alertsUpdated        uint64
	alertsResolved       uint64
	jobFailures          uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "batch_job_duration_seconds",
		Help:    "Duration of scheduled batch jobs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"job"})

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_job_runs_total",
		Help: "Batch job runs by outcome",
	}, []string{"job", "outcome"})

	chargesGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_charges_generated_total",
		Help: "Charges created by the invoice generator",
	})

	absenceAlerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_absence_alerts_total",
		Help: "Absence alert changes by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		jobDuration, jobRuns, chargesGenerated, absenceAlerts, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHitRatio:    cacheHitRatio,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		jobDuration:      jobDuration,
		jobRuns:          jobRuns,
		chargesGenerated: chargesGenerated,
		absenceAlerts:    absenceAlerts,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveJob records one batch job run.
func (m *MetricsService) ObserveJob(job string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		atomic.AddUint64(&m.jobFailures, 1)
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}

// AddChargesGenerated counts charges inserted by the invoice generator.
func (m *MetricsService) AddChargesGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chargesGenerated.Add(float64(n))
	atomic.AddUint64(&m.chargeCount, uint64(n))
}

// RecordAbsenceAlert counts one alert change.
func (m *MetricsService) RecordAbsenceAlert(outcome string) {
	if m == nil {
		return
	}
	m.absenceAlerts.WithLabelValues(outcome).Inc()
	switch outcome {
	case AlertOutcomeCreated:
		atomic.AddUint64(&m.alertsCreated, 1)
	case AlertOutcomeUpdated:
		atomic.AddUint64(&m.alertsUpdated, 1)
	case AlertOutcomeResolved:
		atomic.AddUint64(&m.alertsResolved, 1)
	}
}

// Snapshot returns aggregated metrics for the JSON summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ChargesGenerated:         atomic.LoadUint64(&m.chargeCount),
		AlertsCreated:            atomic.LoadUint64(&m.alertsCreated),
		AlertsUpdated:            atomic.LoadUint64(&m.alertsUpdated),
		AlertsResolved:           atomic.LoadUint64(&m.alertsResolved),
		JobFailures:              atomic.LoadUint64(&m.jobFailures),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
