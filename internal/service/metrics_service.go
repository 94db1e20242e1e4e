package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/pkg/jobs"
)

var scoreBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	scoredItems     *prometheus.CounterVec
	scoreDuration   *prometheus.HistogramVec
	scoreValues     *prometheus.HistogramVec
	activeBackend   *prometheus.GaugeVec
	trainingRuns    *prometheus.CounterVec
	trainingTime    prometheus.Observer
	modelMSE        prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	scoredCount          uint64
	scoringDurationTotal uint64
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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	scoredItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quality_scored_items_total",
		Help: "Assignments scored, by backend and operation",
	}, []string{"backend", "operation"})

	scoreDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quality_scoring_duration_seconds",
		Help:    "Duration of scoring operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	scoreValues := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quality_score_value",
		Help:    "Distribution of produced quality scores",
		Buckets: scoreBuckets,
	}, []string{"backend"})

	activeBackend := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quality_active_backend",
		Help: "1 for the scorer backend currently answering requests",
	}, []string{"backend"})

	trainingRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quality_training_runs_total",
		Help: "Training runs by final status",
	}, []string{"source", "status"})

	trainingTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quality_training_duration_seconds",
		Help:    "Wall time of training runs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	modelMSE := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quality_model_test_mse",
		Help: "Test-split MSE of the most recently trained model",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, dbQueryDuration,
		scoredItems, scoreDuration, scoreValues, activeBackend, trainingRuns, trainingTime, modelMSE, goroutines,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		scoredItems:     scoredItems,
		scoreDuration:   scoreDuration,
		scoreValues:     scoreValues,
		activeBackend:   activeBackend,
		trainingRuns:    trainingRuns,
		trainingTime:    trainingTime,
		modelMSE:        modelMSE,
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

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveScoring records one scoring call covering len(scores) assignments.
func (m *MetricsService) ObserveScoring(operation, backend string, scores []float64, duration time.Duration) {
	if m == nil {
		return
	}
	m.scoredItems.WithLabelValues(backend, operation).Add(float64(len(scores)))
	m.scoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
	observer := m.scoreValues.WithLabelValues(backend)
	for _, s := range scores {
		observer.Observe(s)
	}
	atomic.AddUint64(&m.scoredCount, uint64(len(scores)))
	atomic.AddUint64(&m.scoringDurationTotal, uint64(duration.Nanoseconds()))
}

// SetActiveBackend flags which scorer backend answers requests.
func (m *MetricsService) SetActiveBackend(active string, all ...string) {
	if m == nil {
		return
	}
	for _, b := range all {
		m.activeBackend.WithLabelValues(b).Set(0)
	}
	m.activeBackend.WithLabelValues(active).Set(1)
}

// RecordTraining captures the outcome of a training run.
func (m *MetricsService) RecordTraining(source string, status models.TrainingStatus, duration time.Duration, metrics *models.ModelMetrics) {
	if m == nil {
		return
	}
	m.trainingRuns.WithLabelValues(source, string(status)).Inc()
	m.trainingTime.Observe(duration.Seconds())
	if metrics != nil {
		m.modelMSE.Set(metrics.MSE)
	}
}

// TrackQueue exports depth and outcome counters of a background queue. Call once per queue name.
func (m *MetricsService) TrackQueue(name string, stats func() jobs.Stats) {
	if m == nil || stats == nil {
		return
	}
	labels := prometheus.Labels{"queue": name}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "jobs_queue_pending",
			Help:        "Jobs buffered and waiting for a worker",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Pending) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "jobs_succeeded_total",
			Help:        "Jobs whose handler returned without error",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Succeeded) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "jobs_retried_total",
			Help:        "Failed jobs scheduled for another attempt",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Retried) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "jobs_exhausted_total",
			Help:        "Jobs abandoned after their final attempt",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Exhausted) }),
	)
}

// Snapshot returns aggregated metrics suitable for status endpoints.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)
	scored := atomic.LoadUint64(&m.scoredCount)
	scoreDuration := atomic.LoadUint64(&m.scoringDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: averageMs(reqDuration, requests),
		ScoredItems:              scored,
		AverageScoringLatencyMs:  averageMs(scoreDuration, scored),
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: averageMs(dbDuration, dbCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func averageMs(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
