package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-phishguard/pkg/models"
)

const (
	SafeBrowsingName           = "Google Safe Browsing"
	defaultSafeBrowsingBaseURL = "https://safebrowsing.googleapis.com"
)

// SafeBrowsingConfig configures the Google Safe Browsing v4 lookup.
type SafeBrowsingConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// safeBrowsing 查询 Google Safe Browsing，任何匹配都视为 HIGH
type safeBrowsing struct {
	httpCaller
	apiKey  string
	baseURL string
}

func NewSafeBrowsing(cfg SafeBrowsingConfig) Source {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSafeBrowsingBaseURL
	}
	return &safeBrowsing{
		httpCaller: newHTTPCaller(SafeBrowsingName, cfg.Timeout),
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (s *safeBrowsing) Name() string { return SafeBrowsingName }

type sbClient struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type sbThreatEntry struct {
	URL string `json:"url"`
}

type sbThreatInfo struct {
	ThreatTypes      []string        `json:"threatTypes"`
	PlatformTypes    []string        `json:"platformTypes"`
	ThreatEntryTypes []string        `json:"threatEntryTypes"`
	ThreatEntries    []sbThreatEntry `json:"threatEntries"`
}

type sbRequest struct {
	Client     sbClient     `json:"client"`
	ThreatInfo sbThreatInfo `json:"threatInfo"`
}

type sbResponse struct {
	Matches []map[string]any `json:"matches"`
}

func (s *safeBrowsing) CheckURL(ctx context.Context, rawURL string) (models.ThreatVerdict, error) {
	if s.apiKey == "" {
		return s.failure("API key not configured"), nil
	}

	payload, err := json.Marshal(sbRequest{
		Client: sbClient{ClientID: "credential-phishing-detector", ClientVersion: "1.0.0"},
		ThreatInfo: sbThreatInfo{
			ThreatTypes:      []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE"},
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []sbThreatEntry{{URL: rawURL}},
		},
	})
	if err != nil {
		return models.ThreatVerdict{}, fmt.Errorf("safebrowsing: marshal request: %w", err)
	}

	endpoint := s.baseURL + "/v4/threatMatches:find?key=" + url.QueryEscape(s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return models.ThreatVerdict{}, fmt.Errorf("safebrowsing: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp sbResponse
	elapsed, err := s.do(req, &resp)
	if err != nil {
		return s.failure(err.Error()), nil
	}

	threatTypes := make([]string, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		tt, _ := m["threatType"].(string)
		if tt == "" {
			tt = "UNKNOWN"
		}
		threatTypes = append(threatTypes, tt)
	}
	isThreat := len(resp.Matches) > 0

	level := models.RiskLow
	if isThreat {
		level = models.RiskHigh
	}

	return models.ThreatVerdict{
		Source:    SafeBrowsingName,
		IsThreat:  isThreat,
		RiskLevel: level,
		Details: map[string]any{
			"matches":      resp.Matches,
			"threat_types": threatTypes,
			"threat_count": len(resp.Matches),
		},
		ResponseTimeMs: millis(elapsed),
	}, nil
}
