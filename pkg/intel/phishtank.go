package intel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-phishguard/pkg/models"
)

const (
	PhishTankName           = "PhishTank"
	defaultPhishTankBaseURL = "https://checkurl.phishtank.com"
)

// PhishTankConfig configures the PhishTank community database lookup.
// AppKey is optional.
type PhishTankConfig struct {
	AppKey  string
	BaseURL string
	Timeout time.Duration
}

// phishTank 社区钓鱼库，已收录即为 HIGH
type phishTank struct {
	httpCaller
	appKey  string
	baseURL string
}

func NewPhishTank(cfg PhishTankConfig) Source {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultPhishTankBaseURL
	}
	return &phishTank{
		httpCaller: newHTTPCaller(PhishTankName, cfg.Timeout),
		appKey:     cfg.AppKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (p *phishTank) Name() string { return PhishTankName }

type ptResponse struct {
	Results struct {
		InDatabase      bool   `json:"in_database"`
		Valid           *bool  `json:"valid"`
		PhishID         any    `json:"phish_id"`
		PhishDetailPage string `json:"phish_detail_page"`
		Verified        any    `json:"verified"`
		VerifiedAt      any    `json:"verified_at"`
	} `json:"results"`
}

func (p *phishTank) CheckURL(ctx context.Context, rawURL string) (models.ThreatVerdict, error) {
	form := url.Values{}
	form.Set("url", rawURL)
	form.Set("format", "json")
	form.Set("app_key", p.appKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/checkurl/", strings.NewReader(form.Encode()))
	if err != nil {
		return models.ThreatVerdict{}, fmt.Errorf("phishtank: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "phishing-detector/1.0")

	var resp ptResponse
	elapsed, err := p.do(req, &resp)
	if err != nil {
		return p.failure(err.Error()), nil
	}

	r := resp.Results
	valid := true
	if r.Valid != nil {
		valid = *r.Valid
	}

	level := models.RiskLow
	if r.InDatabase {
		level = models.RiskHigh
	}

	return models.ThreatVerdict{
		Source:    PhishTankName,
		IsThreat:  r.InDatabase,
		RiskLevel: level,
		Details: map[string]any{
			"in_database":      r.InDatabase,
			"valid":            valid,
			"phish_id":         orEmpty(r.PhishID),
			"phish_detail_url": r.PhishDetailPage,
			"verified":         orFalse(r.Verified),
			"verified_at":      orEmpty(r.VerifiedAt),
		},
		ResponseTimeMs: millis(elapsed),
	}, nil
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func orFalse(v any) any {
	if v == nil {
		return false
	}
	return v
}
