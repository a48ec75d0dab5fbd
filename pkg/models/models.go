package models

import (
	"strings"
	"time"
)

// RiskLevel 风险等级，LOW < MEDIUM < HIGH
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Weight returns the position of the level in the strict order.
// Unknown levels sort below LOW.
func (r RiskLevel) Weight() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// Exceeds reports whether r is strictly more severe than other.
func (r RiskLevel) Exceeds(other RiskLevel) bool {
	return r.Weight() > other.Weight()
}

// Action 对请求采取的动作
type Action string

const (
	ActionBlocked Action = "blocked"
	ActionWarned  Action = "warned"
	ActionAllowed Action = "allowed"
)

// DecisionInternal marks a verdict decided by the internal heuristics.
const DecisionInternal = "internal"

// AnalysisRequest 待分析的HTTP请求
type AnalysisRequest struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      map[string]any    `json:"body,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Header returns the value of the named header, matching names case-insensitively.
func (r AnalysisRequest) Header(name string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// LoginIndicators 登录意图的四个指标
type LoginIndicators struct {
	IsPost         bool `json:"is_post"`
	HasCredentials bool `json:"has_credentials"`
	IsAuthEndpoint bool `json:"is_auth_endpoint"`
	HasAuthHeader  bool `json:"has_auth_header"`
	IsLoginAttempt bool `json:"is_login_attempt"`
}

// DomainAnalysis URL/域名分析结果
type DomainAnalysis struct {
	IsValidURL           bool   `json:"is_valid_url"`
	IsIPLiteral          bool   `json:"is_ip_address"`
	HasSuspiciousPattern bool   `json:"has_suspicious_pattern"`
	SubdomainDepth       int    `json:"subdomain_depth"`
	Domain               string `json:"domain"`
	TLD                  string `json:"tld"`
	Hostname             string `json:"hostname"`
}

// HostInfo 主机归属信息，仅用于展示，不参与评分
type HostInfo struct {
	Country string `json:"country,omitempty"`
	ASN     uint   `json:"asn,omitempty"`
	ASNOrg  string `json:"asn_org,omitempty"`
}

// InternalAnalysis 内部分析记录（域名分析 + 黑名单）
type InternalAnalysis struct {
	DomainAnalysis
	URL         string    `json:"url"`
	InBlacklist bool      `json:"in_blacklist"`
	Host        *HostInfo `json:"host,omitempty"`
}

// ThreatVerdict 单个威胁情报源的结果
type ThreatVerdict struct {
	Source         string         `json:"api_name"`
	IsThreat       bool           `json:"is_threat"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Details        map[string]any `json:"details"`
	ResponseTimeMs float64        `json:"response_time_ms"`
}

// AnalysisVerdict 最终分析结果
type AnalysisVerdict struct {
	IsLoginAttempt     bool            `json:"is_login_attempt"`
	IsPhishing         bool            `json:"is_phishing"`
	RiskLevel          RiskLevel       `json:"risk_level"`
	Score              int             `json:"score"`
	Reasons            []string        `json:"reasons"`
	Action             Action          `json:"action"`
	WarningPageURL     *string         `json:"warning_page_url"`
	ExternalAPIResults []ThreatVerdict `json:"external_api_results"`
	DecisionSource     string          `json:"risk_decision_source"`
	Host               *HostInfo       `json:"host,omitempty"`
}
