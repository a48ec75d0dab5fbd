package alerter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/metrics"
	"go-phishguard/pkg/models"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

const defaultCooldown = time.Hour

// Alert webhook 告警内容
type Alert struct {
	ID             string           `json:"id"`
	Timestamp      time.Time        `json:"timestamp"`
	URL            string           `json:"url"`
	Domain         string           `json:"domain"`
	RiskLevel      models.RiskLevel `json:"risk_level"`
	Score          int              `json:"score"`
	Reasons        []string         `json:"reasons"`
	DecisionSource string           `json:"decision_source"`
}

// Alerter 拦截告警处理器，同一域名在冷却期内只告警一次
type Alerter struct {
	webhookURL string
	client     *http.Client
	cooldown   time.Duration
	history    *xsync.Map[string, time.Time] // 域名 -> 最后告警时间
	now        func() time.Time
}

// NewAlerter webhookURL 为空时告警只记录日志
func NewAlerter(webhookURL string, cooldown time.Duration) *Alerter {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Alerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		cooldown:   cooldown,
		history:    xsync.NewMap[string, time.Time](),
		now:        time.Now,
	}
}

// TriggerAlert 发送告警。冷却期内返回 false 且不发送
func (a *Alerter) TriggerAlert(ctx context.Context, rawURL, domain string, v *models.AnalysisVerdict) (bool, error) {
	key := strings.ToLower(domain)
	if key == "" {
		key = rawURL
	}

	now := a.now()
	if !a.reserve(key, now) {
		logger.Log.Infof("域名 %s 在冷却期内，跳过告警", key)
		return false, nil
	}
	a.CleanupOldHistory()

	alert := Alert{
		ID:             uuid.NewString(),
		Timestamp:      now,
		URL:            rawURL,
		Domain:         domain,
		RiskLevel:      v.RiskLevel,
		Score:          v.Score,
		Reasons:        v.Reasons,
		DecisionSource: v.DecisionSource,
	}
	metrics.AlertsTriggered.Inc()

	if a.webhookURL == "" {
		logger.Log.Warnf("拦截告警(未配置webhook): id=%s, domain=%s, risk=%s", alert.ID, domain, v.RiskLevel)
		return true, nil
	}

	if err := a.sendAlertNotification(ctx, alert); err != nil {
		// 发送失败时释放冷却，下次可以重试
		a.history.Delete(key)
		logger.Log.Errorf("发送告警通知失败: %v", err)
		return false, err
	}

	logger.Log.Infof("成功触发告警: id=%s, domain=%s, risk=%s", alert.ID, domain, v.RiskLevel)
	return true, nil
}

// reserve 冷却期外时原子地记录本次告警时间
func (a *Alerter) reserve(key string, now time.Time) bool {
	reserved := false
	a.history.Compute(key, func(last time.Time, loaded bool) (time.Time, xsync.ComputeOp) {
		if loaded && now.Sub(last) < a.cooldown {
			return last, xsync.CancelOp
		}
		reserved = true
		return now, xsync.UpdateOp
	})
	return reserved
}

func (a *Alerter) sendAlertNotification(ctx context.Context, alert Alert) error {
	jsonData, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// CleanupOldHistory 清理过期的告警历史
func (a *Alerter) CleanupOldHistory() {
	now := a.now()
	a.history.Range(func(key string, last time.Time) bool {
		if now.Sub(last) > a.cooldown {
			a.history.Compute(key, func(cur time.Time, loaded bool) (time.Time, xsync.ComputeOp) {
				if loaded && now.Sub(cur) > a.cooldown {
					return cur, xsync.DeleteOp
				}
				return cur, xsync.CancelOp
			})
		}
		return true
	})
}

// Size 当前冷却中的域名数
func (a *Alerter) Size() int {
	return a.history.Size()
}
