package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go-phishguard/pkg/alerter"
	"go-phishguard/pkg/analyzer"
	"go-phishguard/pkg/detector"
	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/metrics"
	"go-phishguard/pkg/models"
	"go-phishguard/pkg/risk"
)

const alertTimeout = 10 * time.Second

// ErrInternal 分析过程中的意外错误，不能当作放行或拦截处理
var ErrInternal = errors.New("internal analysis error")

// Engine 检测流水线：登录识别 -> 内部分析 + 外部情报 -> 风险融合
type Engine struct {
	analyzer   *analyzer.PhishingAnalyzer
	calculator *risk.Calculator
	alerter    *alerter.Alerter
	alerts     sync.WaitGroup
}

// New alerter 可为 nil
func New(pa *analyzer.PhishingAnalyzer, calc *risk.Calculator, al *alerter.Alerter) *Engine {
	return &Engine{analyzer: pa, calculator: calc, alerter: al}
}

func (e *Engine) Analyzer() *analyzer.PhishingAnalyzer {
	return e.analyzer
}

// NotLoginVerdict 非登录请求的结果
func NotLoginVerdict() *models.AnalysisVerdict {
	return &models.AnalysisVerdict{
		IsLoginAttempt:     false,
		IsPhishing:         false,
		RiskLevel:          models.RiskLow,
		Reasons:            []string{},
		Action:             models.ActionAllowed,
		ExternalAPIResults: []models.ThreatVerdict{},
		DecisionSource:     models.DecisionInternal,
	}
}

// Analyze 分析单个请求。非登录请求直接放行，不做域名分析和外部查询。
// 拦截时异步发送告警。返回的错误都包装了 ErrInternal
func (e *Engine) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisVerdict, error) {
	return e.evaluate(ctx, req, true)
}

// Preview 与 Analyze 判定相同（仍会查询外部情报源），但不计入判定指标也不触发告警
func (e *Engine) Preview(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisVerdict, error) {
	return e.evaluate(ctx, req, false)
}

func (e *Engine) evaluate(ctx context.Context, req models.AnalysisRequest, record bool) (verdict *models.AnalysisVerdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("分析过程异常: %v\n%s", r, debug.Stack())
			verdict, err = nil, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	start := time.Now()
	if record {
		metrics.RequestsAnalyzed.Inc()
	}

	if !detector.Detect(req) {
		logger.Log.Debugf("非登录请求，放行: %s %s", req.Method, req.URL)
		return NotLoginVerdict(), nil
	}
	if record {
		metrics.LoginAttempts.Inc()
	}
	logger.Log.Infof("检测到登录请求: %s %s", req.Method, req.URL)

	internal, external := e.analyzer.Analyze(ctx, req.URL)
	verdict = e.calculator.Calculate(internal, external)

	logger.Log.Infof("分析完成: url=%s, risk=%s, score=%d, action=%s, source=%s",
		req.URL, verdict.RiskLevel, verdict.Score, verdict.Action, verdict.DecisionSource)
	for _, v := range verdict.ExternalAPIResults {
		logger.Log.Infof("  外部情报 %s: threat=%t, risk=%s", v.Source, v.IsThreat, v.RiskLevel)
	}

	if !record {
		return verdict, nil
	}
	metrics.VerdictsByAction.WithLabelValues(string(verdict.Action), string(verdict.RiskLevel)).Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	if verdict.Action == models.ActionBlocked {
		e.notify(req.URL, internal.Domain, verdict)
	}
	return verdict, nil
}

// notify 异步发送告警，结果不影响判定
func (e *Engine) notify(rawURL, domain string, verdict *models.AnalysisVerdict) {
	if e.alerter == nil {
		return
	}
	e.alerts.Add(1)
	go func() {
		defer e.alerts.Done()
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if _, err := e.alerter.TriggerAlert(ctx, rawURL, domain, verdict); err != nil {
			logger.Log.Errorf("触发告警失败: %v", err)
		}
	}()
}

// Wait 等待已发出的告警完成，进程退出前调用
func (e *Engine) Wait() {
	e.alerts.Wait()
}

// Status 健康检查用的运行状态
type Status struct {
	ActiveSources  []string
	BlacklistCount int
}

func (e *Engine) Status() Status {
	s := Status{ActiveSources: e.analyzer.Orchestrator().Sources()}
	if bl := e.analyzer.Blacklist(); bl != nil {
		s.BlacklistCount = bl.Count()
	}
	return s
}
