package observability

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

// Metrics holds every collector the service exports. All methods are safe on
// a nil receiver so callers can hold a nil *Metrics when metrics are off.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	solverRuns       *prometheus.CounterVec
	solverIterations prometheus.Histogram
	solverRuntime    prometheus.Histogram

	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec

	aggregateOps       *prometheus.HistogramVec
	aggregateConflicts *prometheus.CounterVec
	aggregateRetries   *prometheus.CounterVec

	activities       *prometheus.CounterVec
	activityDuration *prometheus.HistogramVec

	dbStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 15 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 15 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init builds the process-wide metrics once. It returns nil when
// METRICS_ENABLED is off.
func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		if !Enabled() {
			return
		}
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// New builds a Metrics on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitprogram_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitprogram_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "fitprogram_http_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),

		solverRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitprogram_solver_runs_total",
			Help: "Solver runs by outcome.",
		}, []string{"outcome"}),
		solverIterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitprogram_solver_iterations",
			Help:    "Candidates evaluated per solve.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		}),
		solverRuntime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitprogram_solver_runtime_seconds",
			Help:    "Wall time per solve.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),

		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitprogram_reassessment_cycles_total",
			Help: "Reassessment cycles by outcome and adjustment type.",
		}, []string{"outcome", "adjustment_type"}),
		cycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitprogram_reassessment_cycle_duration_seconds",
			Help:    "End-to-end reassessment cycle latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"outcome"}),

		aggregateOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitprogram_aggregate_operation_duration_seconds",
			Help:    "Aggregate write latency by operation and status.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"operation", "status"}),
		aggregateConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitprogram_aggregate_conflicts_total",
			Help: "Aggregate writes rejected with a conflict.",
		}, []string{"operation"}),
		aggregateRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitprogram_aggregate_retries_total",
			Help: "Aggregate write attempts that failed with a retryable error.",
		}, []string{"operation"}),

		activities: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitprogram_workflow_activities_total",
			Help: "Temporal activity executions by name and status.",
		}, []string{"activity", "status"}),
		activityDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitprogram_workflow_activity_duration_seconds",
			Help:    "Temporal activity latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"activity"}),

		dbStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fitprogram_db_pool",
			Help: "database/sql pool statistics.",
		}, []string{"stat"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "fitprogram_redis_up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: f.NewGauge(prometheus.GaugeOpts{
			Name: "fitprogram_redis_ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

// ObserveHTTP records one served request under its route template.
func (m *Metrics) ObserveHTTP(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) HTTPInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

// ObserveSolve records one finished solve.
func (m *Metrics) ObserveSolve(feasible bool, timedOut bool, iterations int, runtime time.Duration) {
	if m == nil {
		return
	}
	outcome := "infeasible"
	switch {
	case timedOut:
		outcome = "timeout"
	case feasible:
		outcome = "feasible"
	}
	m.solverRuns.WithLabelValues(outcome).Inc()
	m.solverIterations.Observe(float64(iterations))
	m.solverRuntime.Observe(runtime.Seconds())
}

// ObserveCycle records one finished reassessment cycle.
func (m *Metrics) ObserveCycle(outcome, adjustmentType string, dur time.Duration) {
	if m == nil {
		return
	}
	if adjustmentType == "" {
		adjustmentType = "none"
	}
	m.cycles.WithLabelValues(outcome, adjustmentType).Inc()
	m.cycleDuration.WithLabelValues(outcome).Observe(dur.Seconds())
}

func (m *Metrics) ObserveAggregateOperation(operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.WithLabelValues(operation, status).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(operation string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncAggregateRetry(operation string) {
	if m == nil {
		return
	}
	m.aggregateRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveActivity(activityName, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.activities.WithLabelValues(activityName, status).Inc()
	m.activityDuration.WithLabelValues(activityName).Observe(dur.Seconds())
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.dbStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.dbStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.dbStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.dbStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.dbStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
