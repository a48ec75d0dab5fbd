package intel

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go-phishguard/pkg/models"
)

const (
	VirusTotalName           = "VirusTotal"
	defaultVirusTotalBaseURL = "https://www.virustotal.com"
)

// VirusTotalConfig configures the VirusTotal v3 URL report lookup.
type VirusTotalConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// virusTotal 按多引擎检测数判定风险
type virusTotal struct {
	httpCaller
	apiKey  string
	baseURL string
}

func NewVirusTotal(cfg VirusTotalConfig) Source {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultVirusTotalBaseURL
	}
	return &virusTotal{
		httpCaller: newHTTPCaller(VirusTotalName, cfg.Timeout),
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (v *virusTotal) Name() string { return VirusTotalName }

type vtAnalysisStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

type vtResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats vtAnalysisStats `json:"last_analysis_stats"`
			Reputation        int             `json:"reputation"`
			LastAnalysisDate  int64           `json:"last_analysis_date"`
		} `json:"attributes"`
	} `json:"data"`
}

// urlID VirusTotal 的URL标识：URL安全的base64，去掉填充
func urlID(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

func (v *virusTotal) CheckURL(ctx context.Context, rawURL string) (models.ThreatVerdict, error) {
	if v.apiKey == "" {
		return v.failure("API key not configured"), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/api/v3/urls/"+urlID(rawURL), nil)
	if err != nil {
		return models.ThreatVerdict{}, fmt.Errorf("virustotal: create request: %w", err)
	}
	req.Header.Set("x-apikey", v.apiKey)
	req.Header.Set("Accept", "application/json")

	var resp vtResponse
	elapsed, err := v.do(req, &resp)
	if err != nil {
		return v.failure(err.Error()), nil
	}

	attrs := resp.Data.Attributes
	stats := attrs.LastAnalysisStats
	level, isThreat := classifyEngines(stats.Malicious, stats.Suspicious)

	return models.ThreatVerdict{
		Source:    VirusTotalName,
		IsThreat:  isThreat,
		RiskLevel: level,
		Details: map[string]any{
			"malicious_count":    stats.Malicious,
			"suspicious_count":   stats.Suspicious,
			"harmless_count":     stats.Harmless,
			"undetected_count":   stats.Undetected,
			"total_scanners":     stats.Malicious + stats.Suspicious + stats.Harmless + stats.Undetected,
			"reputation":         attrs.Reputation,
			"last_analysis_date": attrs.LastAnalysisDate,
		},
		ResponseTimeMs: millis(elapsed),
	}, nil
}

// classifyEngines: 恶意 >5 为 HIGH；恶意 >0 或可疑 >2 为 MEDIUM
func classifyEngines(malicious, suspicious int) (models.RiskLevel, bool) {
	isThreat := malicious > 0 || suspicious > 2
	switch {
	case malicious > 5:
		return models.RiskHigh, isThreat
	case isThreat:
		return models.RiskMedium, isThreat
	default:
		return models.RiskLow, isThreat
	}
}
