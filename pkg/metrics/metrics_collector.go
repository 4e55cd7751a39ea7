package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器，nil 接收者上的记录方法为空操作
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 墙模块指标
	likeTogglesTotal      *prometheus.CounterVec
	cascadeCommentsTotal  *prometheus.CounterVec
	versionConflictsTotal *prometheus.CounterVec
	counterDriftTotal     *prometheus.CounterVec
	cacheLookupsTotal     *prometheus.CounterVec
}

// NewMetricsCollector 创建指标收集器，reg 为 nil 时注册到默认 Registry
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &MetricsCollector{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		likeTogglesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wall_like_toggles_total",
				Help: "Like toggles by resulting state",
			},
			[]string{"result"},
		),

		cascadeCommentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wall_cascade_comments_total",
				Help: "Comments transitioned by post hide/unhide cascades",
			},
			[]string{"action"},
		),

		versionConflictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wall_version_conflicts_total",
				Help: "Optimistic version conflicts by entity",
			},
			[]string{"entity"},
		),

		counterDriftTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wall_counter_drift_total",
				Help: "Denormalized counters repaired by the reconciler",
			},
			[]string{"counter"},
		),

		cacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wall_cache_lookups_total",
				Help: "Post cache lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordLikeToggle 记录点赞切换结果
func (m *MetricsCollector) RecordLikeToggle(liked bool) {
	if m == nil {
		return
	}
	result := "unliked"
	if liked {
		result = "liked"
	}
	m.likeTogglesTotal.WithLabelValues(result).Inc()
}

// RecordCascade 记录级联影响的评论数
func (m *MetricsCollector) RecordCascade(action string, comments int64) {
	if m == nil {
		return
	}
	m.cascadeCommentsTotal.WithLabelValues(action).Add(float64(comments))
}

// RecordVersionConflict 记录乐观锁冲突
func (m *MetricsCollector) RecordVersionConflict(entity string) {
	if m == nil {
		return
	}
	m.versionConflictsTotal.WithLabelValues(entity).Inc()
}

// RecordCounterDrift 记录对账修复
func (m *MetricsCollector) RecordCounterDrift(counter string) {
	if m == nil {
		return
	}
	m.counterDriftTotal.WithLabelValues(counter).Inc()
}

// RecordCacheLookup 记录缓存命中情况
func (m *MetricsCollector) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(outcome).Inc()
}
