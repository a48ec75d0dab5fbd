package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishguard_requests_analyzed_total",
		Help: "已分析的请求总数",
	})

	LoginAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishguard_login_attempts_total",
		Help: "识别为登录尝试的请求总数",
	})

	VerdictsByAction = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_verdicts_total",
			Help: "按动作统计的判定结果",
		},
		[]string{"action", "risk_level"},
	)

	InternalScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "phishguard_internal_risk_score",
		Help:    "内部启发式风险分数分布",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishguard_alerts_triggered_total",
		Help: "触发的告警总数",
	})

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_source_failures_total",
			Help: "外部情报源调用失败次数",
		},
		[]string{"source", "kind"},
	)

	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishguard_source_latency_seconds",
			Help:    "外部情报源响应时间",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"source"},
	)

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "phishguard_analysis_seconds",
		Help:    "单次分析总耗时",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
)
