package intel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/models"
)

// Orchestrator 并发查询所有启用的情报源，单个源失败或超时不影响其他源
type Orchestrator struct {
	sources []Source
	timeout time.Duration
}

func NewOrchestrator(sources []Source, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	return &Orchestrator{sources: sources, timeout: timeout}
}

// Count returns the number of enabled sources.
func (o *Orchestrator) Count() int {
	return len(o.sources)
}

// Sources returns the names of the enabled sources in configuration order.
func (o *Orchestrator) Sources() []string {
	names := make([]string, 0, len(o.sources))
	for _, s := range o.sources {
		names = append(names, s.Name())
	}
	return names
}

type sourceResult struct {
	verdict models.ThreatVerdict
	err     error
}

// CheckAll 对每个源单独计时，出错或超时的源不计入结果。
// 调用方取消不会中断已发出的查询，只受单次超时约束。
func (o *Orchestrator) CheckAll(ctx context.Context, rawURL string) []models.ThreatVerdict {
	if len(o.sources) == 0 {
		return nil
	}

	base := context.WithoutCancel(ctx)
	results := make([]*models.ThreatVerdict, len(o.sources))

	var wg sync.WaitGroup
	for i, src := range o.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(base, o.timeout)
			defer cancel()

			v, err := o.call(callCtx, src, rawURL)
			if err != nil {
				logger.Log.Warnf("情报源 %s 无结果: %v", src.Name(), err)
				return
			}
			results[i] = &v
		}(i, src)
	}
	wg.Wait()

	verdicts := make([]models.ThreatVerdict, 0, len(results))
	for _, r := range results {
		if r != nil {
			verdicts = append(verdicts, *r)
		}
	}
	return verdicts
}

// call 在独立 goroutine 中执行查询，超时即返回，不等待源自行结束
func (o *Orchestrator) call(ctx context.Context, src Source, rawURL string) (models.ThreatVerdict, error) {
	done := make(chan sourceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- sourceResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := src.CheckURL(ctx, rawURL)
		done <- sourceResult{verdict: v, err: err}
	}()

	select {
	case res := <-done:
		return res.verdict, res.err
	case <-ctx.Done():
		return models.ThreatVerdict{}, ErrTimeout
	}
}

// HighestRisk 返回等级最高的结果及其来源；空输入为 LOW/"none"，同级取最先出现者
func HighestRisk(verdicts []models.ThreatVerdict) (models.RiskLevel, string) {
	if len(verdicts) == 0 {
		return models.RiskLow, "none"
	}
	best := verdicts[0]
	for _, v := range verdicts[1:] {
		if v.RiskLevel.Exceeds(best.RiskLevel) {
			best = v
		}
	}
	return best.RiskLevel, best.Source
}
