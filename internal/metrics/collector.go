// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record 方法对 nil 接收者安全。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 生成任务指标
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	branchesTotal      *prometheus.CounterVec
	retriesTotal       *prometheus.CounterVec
	fallbacksTotal     *prometheus.CounterVec
	pollsTotal         *prometheus.CounterVec

	// 分支池指标
	poolActive  prometheus.Gauge
	poolWaiting prometheus.Gauge

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbQueryDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 生成任务指标
	c.generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generation requests",
		},
		[]string{"modality", "provider", "status"},
	)

	c.generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation request duration in seconds",
			// 视频任务可达数分钟
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"modality", "provider"},
	)

	c.branchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_branches_total",
			Help:      "Total number of fan-out branches by outcome",
		},
		[]string{"modality", "outcome"}, // outcome: success, failure
	)

	c.retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_retries_total",
			Help:      "Total number of backoff retries after transient errors",
		},
		[]string{"modality"},
	)

	c.fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_fallbacks_total",
			Help:      "Total number of cross-modality fallbacks",
		},
		[]string{"outcome"},
	)

	c.pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_polls_total",
			Help:      "Total number of long-running operation status queries",
		},
		[]string{"provider"},
	)

	c.poolActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "branch_pool_active",
		Help:      "Branches currently holding a pool slot",
	})

	c.poolWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "branch_pool_waiting",
		Help:      "Branches waiting for a pool slot",
	})

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 数据库指标
	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🎬 生成任务指标记录
// =============================================================================

// RecordGeneration 记录一次 Submit 的结果。status 为 success 或错误码。
func (c *Collector) RecordGeneration(modality, provider, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.generationsTotal.WithLabelValues(modality, provider, status).Inc()
	c.generationDuration.WithLabelValues(modality, provider).Observe(duration.Seconds())
}

// RecordBranch 记录单个分支结果
func (c *Collector) RecordBranch(modality string, ok bool) {
	if c == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	c.branchesTotal.WithLabelValues(modality, outcome).Inc()
}

// RecordRetry 记录一次退避重试
func (c *Collector) RecordRetry(modality string) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(modality).Inc()
}

// RecordFallback 记录降级链结果
func (c *Collector) RecordFallback(ok bool) {
	if c == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	c.fallbacksTotal.WithLabelValues(outcome).Inc()
}

// RecordPoll 记录一次任务状态查询
func (c *Collector) RecordPoll(provider string) {
	if c == nil {
		return
	}
	c.pollsTotal.WithLabelValues(provider).Inc()
}

// RecordPool 记录分支池占用
func (c *Collector) RecordPool(active, waiting int) {
	if c == nil {
		return
	}
	c.poolActive.Set(float64(active))
	c.poolWaiting.Set(float64(waiting))
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	if c == nil {
		return
	}
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
