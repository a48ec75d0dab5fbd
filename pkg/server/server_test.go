package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go-phishguard/pkg/analyzer"
	"go-phishguard/pkg/engine"
	"go-phishguard/pkg/intel"
	"go-phishguard/pkg/models"
	"go-phishguard/pkg/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	name    string
	verdict models.ThreatVerdict
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) CheckURL(ctx context.Context, rawURL string) (models.ThreatVerdict, error) {
	v := s.verdict
	v.Source = s.name
	return v, nil
}

const testAdminToken = "test-token"

func newTestServer(t *testing.T, sources []intel.Source, domains ...string) (*httptest.Server, string) {
	t.Helper()
	return newTestServerWithOptions(t, Options{
		AllowedOrigins: []string{"https://console.example"},
		AdminToken:     testAdminToken,
	}, sources, domains...)
}

func newTestServerWithOptions(t *testing.T, opts Options, sources []intel.Source, domains ...string) (*httptest.Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blacklist.json")
	data, err := json.Marshal(map[string]any{"domains": domains, "description": "test"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	pa := analyzer.NewPhishingAnalyzer(analyzer.NewBlacklist(path), nil, intel.NewOrchestrator(sources, time.Second))
	eng := engine.New(pa, risk.NewCalculator(70, 40), nil)
	opts.Version = "test"
	opts.RiskThresholdHigh = 70
	opts.RiskThresholdMedium = 40
	opts.TimeoutSeconds = 3
	s := New(eng, opts)

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, path
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// adminRequest 构造携带管理令牌的请求
func adminRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAnalyzeNotLogin(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]any{"url": "https://example.com", "method": "GET"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]any{
		"is_login_attempt": false,
		"action":           "allowed",
		"message":          "Not a login attempt",
	}, body)
}

func TestAnalyzeWarnedReturnsVerdict(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]any{
		"url":    "http://192.168.1.1/login",
		"method": "POST",
		"body":   map[string]any{"username": "bob", "password": "x"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v models.AnalysisVerdict
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.True(t, v.IsLoginAttempt)
	assert.Equal(t, models.RiskMedium, v.RiskLevel)
	assert.Equal(t, models.ActionWarned, v.Action)
	assert.Equal(t, 40, v.Score)
	assert.Nil(t, v.WarningPageURL)
	assert.Equal(t, "internal", v.DecisionSource)
}

func TestAnalyzeBlockedRendersWarningPage(t *testing.T) {
	sources := []intel.Source{staticSource{name: "Google Safe Browsing", verdict: models.ThreatVerdict{
		IsThreat: true, RiskLevel: models.RiskHigh, Details: map[string]any{"threat_types": []string{"SOCIAL_ENGINEERING"}},
	}}}
	ts, _ := newTestServer(t, sources)

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]any{
		"url":    "https://login.example.com/signin",
		"method": "POST",
		"body":   map[string]any{"email": "a@b.c", "password": "x"},
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	buf := new(strings.Builder)
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	page := buf.String()
	assert.Contains(t, page, "Risk: HIGH")
	assert.Contains(t, page, "https://login.example.com/signin")
	assert.Contains(t, page, "Google Safe Browsing: threat detected (risk: high) - SOCIAL_ENGINEERING")
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2 := postJSON(t, ts.URL+"/api/v1/analyze", map[string]any{"method": "POST"})
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.Equal(t, "INVALID_REQUEST", body.Error.Code)
}

func TestDetectReturnsIndicators(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/detect", map[string]any{
		"url":     "https://example.com/oauth/token",
		"method":  "GET",
		"headers": map[string]string{"Authorization": "Bearer x"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body detectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Indicators.IsAuthEndpoint)
	assert.True(t, body.Indicators.HasAuthHeader)
	assert.True(t, body.Indicators.IsLoginAttempt)
	require.NotNil(t, body.Verdict)
	assert.True(t, body.Verdict.IsLoginAttempt)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, []intel.Source{staticSource{name: "PhishTank"}}, "evil.com")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, []string{"PhishTank"}, body.ActiveAPIs)
	assert.Equal(t, 1, body.ActiveAPICount)
	assert.Equal(t, 1, body.BlacklistCount)
	assert.Equal(t, 70, body.Settings.RiskThresholdHigh)
}

func TestBlacklistAdmin(t *testing.T) {
	ts, path := newTestServer(t, nil, "evil.com")

	resp := adminRequest(t, http.MethodPost, ts.URL+"/api/v1/blacklist", map[string]string{"domain": "Phish.Example"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = adminRequest(t, http.MethodPost, ts.URL+"/api/v1/blacklist", map[string]string{"domain": "phish.example"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	getResp := adminRequest(t, http.MethodGet, ts.URL+"/api/v1/blacklist", nil)
	var list blacklistResponse
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&list))
	assert.Equal(t, []string{"evil.com", "phish.example"}, list.Domains)

	delResp := adminRequest(t, http.MethodDelete, ts.URL+"/api/v1/blacklist/evil.com", nil)
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	delResp = adminRequest(t, http.MethodDelete, ts.URL+"/api/v1/blacklist/evil.com", nil)
	assert.Equal(t, http.StatusNotFound, delResp.StatusCode)

	// 外部修改文件后重新加载
	require.NoError(t, os.WriteFile(path, []byte(`{"domains":["a.com","b.com","c.com"],"description":"x"}`), 0o644))
	resp = adminRequest(t, http.MethodPost, ts.URL+"/api/v1/blacklist/reload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reload map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reload))
	assert.Equal(t, 3, reload["count"])
}

func TestBlacklistAdminRequiresToken(t *testing.T) {
	ts, path := newTestServer(t, nil, "evil.com")

	tests := []struct {
		name   string
		header string
		value  string
	}{
		{"no token", "", ""},
		{"wrong bearer", "Authorization", "Bearer nope"},
		{"wrong header token", "X-Admin-Token", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/blacklist/evil.com", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", "https://attacker.example")
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
		})
	}

	// 条目未被删除
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "evil.com")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/blacklist/evil.com", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", testAdminToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestBlacklistAdminDisabledWithoutToken(t *testing.T) {
	ts, _ := newTestServerWithOptions(t, Options{}, nil, "evil.com")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/blacklist/evil.com", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// 分析接口不受影响
	an := postJSON(t, ts.URL+"/api/v1/analyze", map[string]any{"url": "https://example.com", "method": "GET"})
	assert.Equal(t, http.StatusOK, an.StatusCode)
}

func TestCORSWildcardOmitsCredentials(t *testing.T) {
	ts, _ := newTestServerWithOptions(t, Options{AllowedOrigins: []string{"*"}, AdminToken: testAdminToken}, nil, "evil.com")

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/blacklist/evil.com", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://attacker.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestPagesAndCORS(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/warning?risk=medium")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(strings.Builder)
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), "Risk: MEDIUM")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	req.Header.Set("Origin", "https://console.example")
	idx, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer idx.Body.Close()
	assert.Equal(t, http.StatusOK, idx.StatusCode)
	assert.Equal(t, "https://console.example", idx.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", idx.Header.Get("Access-Control-Allow-Credentials"))
	assert.NotEmpty(t, idx.Header.Get("X-Request-ID"))

	req.Header.Set("Origin", "https://other.example")
	other, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer other.Body.Close()
	assert.Empty(t, other.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecovererWritesEnvelope(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INTERNAL", body.Error.Code)
}
