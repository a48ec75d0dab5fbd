package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/metrics"
	"go-phishguard/pkg/models"
)

const defaultSourceTimeout = 3 * time.Second

// Source 外部威胁情报源
type Source interface {
	// Name returns the display name used in verdicts and reasons.
	Name() string

	// CheckURL looks the URL up. Transport failures are folded into a LOW
	// verdict; a returned error means the source could not produce any verdict.
	CheckURL(ctx context.Context, rawURL string) (models.ThreatVerdict, error)
}

// ErrTimeout 请求超时
var ErrTimeout = errors.New("timeout")

// StatusError 非 2xx 响应
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// httpCaller 各情报源共用的HTTP调用：计时、错误分类、失败结果
type httpCaller struct {
	name   string
	client *http.Client
}

func newHTTPCaller(name string, timeout time.Duration) httpCaller {
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	return httpCaller{
		name:   name,
		client: &http.Client{Timeout: timeout},
	}
}

// do 发送请求并把JSON响应解码到 out，返回耗时
func (c httpCaller) do(req *http.Request, out any) (time.Duration, error) {
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		err = classify(err)
		c.logFailure(req, err)
		return time.Since(start), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		err := &StatusError{Code: resp.StatusCode}
		c.logFailure(req, err)
		return time.Since(start), err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = classify(err)
		c.logFailure(req, err)
		return time.Since(start), err
	}
	elapsed := time.Since(start)

	if len(bytes.TrimSpace(body)) > 0 && out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			err = fmt.Errorf("%s: decode response: %w", c.name, err)
			c.logFailure(req, err)
			return elapsed, err
		}
	}
	metrics.SourceLatency.WithLabelValues(c.name).Observe(elapsed.Seconds())
	return elapsed, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return err
}

func failureKind(err error) string {
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &statusErr):
		return "http_status"
	default:
		return "other"
	}
}

func (c httpCaller) logFailure(req *http.Request, err error) {
	metrics.SourceFailures.WithLabelValues(c.name, failureKind(err)).Inc()
	switch failureKind(err) {
	case "timeout":
		logger.Log.Warnf("%s 请求超时: %s", c.name, req.URL.Host)
	case "http_status":
		logger.Log.Warnf("%s 返回错误 %v: %s", c.name, err, req.URL.Host)
	default:
		logger.Log.Errorf("%s 请求失败: %v", c.name, err)
	}
}

// failure 构造失败结果：视为无威胁，不抬高风险
func (c httpCaller) failure(reason string) models.ThreatVerdict {
	return models.ThreatVerdict{
		Source:    c.name,
		IsThreat:  false,
		RiskLevel: models.RiskLow,
		Details: map[string]any{
			"error":   reason,
			"checked": false,
		},
		ResponseTimeMs: 0,
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
