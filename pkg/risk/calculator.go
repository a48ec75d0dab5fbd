package risk

import (
	"fmt"
	"strings"

	"go-phishguard/pkg/intel"
	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/metrics"
	"go-phishguard/pkg/models"
)

// 内部规则分值
const (
	scoreBlacklist      = 50
	scoreIPLiteral      = 40
	scoreSuspicious     = 25
	scoreDeepSubdomain  = 15
	scoreInvalidURL     = 30
	maxNormalSubdomains = 3
)

const (
	DefaultHighThreshold   = 70
	DefaultMediumThreshold = 40
)

// Calculator 融合内部分析与外部情报，得出最终风险等级
type Calculator struct {
	high   int
	medium int
}

func NewCalculator(high, medium int) *Calculator {
	if high <= 0 {
		high = DefaultHighThreshold
	}
	if medium <= 0 {
		medium = DefaultMediumThreshold
	}
	return &Calculator{high: high, medium: medium}
}

// Calculate 内外等级取高者；外部严格更高时以外部为准，否则以内部为准（含相等）
func (c *Calculator) Calculate(internal models.InternalAnalysis, external []models.ThreatVerdict) *models.AnalysisVerdict {
	score, internalReasons := internalScore(internal)
	internalLevel := c.Level(score)
	metrics.InternalScore.Observe(float64(score))

	externalLevel, externalSource := intel.HighestRisk(external)
	extReasons := externalReasons(external)

	var (
		level   models.RiskLevel
		reasons []string
		source  string
	)
	if externalLevel.Exceeds(internalLevel) {
		logger.Log.Infof("外部情报风险更高: %s > %s (source: %s)", externalLevel, internalLevel, externalSource)
		level = externalLevel
		reasons = append(extReasons, internalReasons...)
		source = externalSource
	} else {
		logger.Log.Infof("使用内部分析风险: %s (score: %d)", internalLevel, score)
		level = internalLevel
		reasons = append(internalReasons, extReasons...)
		source = models.DecisionInternal
	}

	if reasons == nil {
		reasons = []string{}
	}
	if external == nil {
		external = []models.ThreatVerdict{}
	}

	action := ActionFor(level)
	var warningURL *string
	if action == models.ActionBlocked {
		u := "/warning?risk=" + string(level)
		warningURL = &u
	}

	return &models.AnalysisVerdict{
		IsLoginAttempt:     true,
		IsPhishing:         level == models.RiskHigh || level == models.RiskMedium,
		RiskLevel:          level,
		Score:              score,
		Reasons:            reasons,
		Action:             action,
		WarningPageURL:     warningURL,
		ExternalAPIResults: external,
		DecisionSource:     source,
		Host:               internal.Host,
	}
}

// Level 将内部分数映射为风险等级
func (c *Calculator) Level(score int) models.RiskLevel {
	switch {
	case score >= c.high:
		return models.RiskHigh
	case score >= c.medium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// CalculateScore 仅计算内部分数
func CalculateScore(internal models.InternalAnalysis) int {
	score, _ := internalScore(internal)
	return score
}

// ActionFor HIGH 拦截，MEDIUM 警告，其余放行
func ActionFor(level models.RiskLevel) models.Action {
	switch level {
	case models.RiskHigh:
		return models.ActionBlocked
	case models.RiskMedium:
		return models.ActionWarned
	default:
		return models.ActionAllowed
	}
}

// internalScore 各规则独立累加，理由顺序固定
func internalScore(a models.InternalAnalysis) (int, []string) {
	score := 0
	var reasons []string

	if a.InBlacklist {
		score += scoreBlacklist
		reasons = append(reasons, "Domain is on the known phishing blacklist")
	}
	if a.IsIPLiteral {
		score += scoreIPLiteral
		reasons = append(reasons, "IP address used instead of a domain name")
	}
	if a.HasSuspiciousPattern {
		score += scoreSuspicious
		reasons = append(reasons, "Suspicious URL pattern detected (@, repeated hyphens, long random string)")
	}
	if a.SubdomainDepth > maxNormalSubdomains {
		score += scoreDeepSubdomain
		reasons = append(reasons, fmt.Sprintf("Abnormally deep subdomain nesting (%d levels)", a.SubdomainDepth))
	}
	if !a.IsValidURL {
		score += scoreInvalidURL
		reasons = append(reasons, "Invalid URL format")
	}

	return score, reasons
}

// externalReasons 每个判定为威胁的结果生成一条理由
func externalReasons(verdicts []models.ThreatVerdict) []string {
	var reasons []string
	for _, v := range verdicts {
		if !v.IsThreat {
			continue
		}
		reason := fmt.Sprintf("%s: threat detected (risk: %s)", v.Source, v.RiskLevel)
		reasons = append(reasons, reason+detailSuffix(v.Details))
	}
	return reasons
}

// detailSuffix 按 threat_types / malicious_count / phish_id 的优先级取一项详情
func detailSuffix(details map[string]any) string {
	if raw, ok := details["threat_types"]; ok {
		if types := toStrings(raw); len(types) > 0 {
			return " - " + strings.Join(types, ", ")
		}
		return ""
	}
	if raw, ok := details["malicious_count"]; ok {
		suffix := fmt.Sprintf(" - %d scanners flagged as malicious", toInt(raw))
		if suspicious := toInt(details["suspicious_count"]); suspicious > 0 {
			suffix += fmt.Sprintf(", %d suspicious", suspicious)
		}
		return suffix
	}
	if id, ok := details["phish_id"]; ok && !isZero(id) {
		return fmt.Sprintf(" - Phish ID: %v", id)
	}
	return ""
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return nil
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func isZero(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case int:
		return t == 0
	case float64:
		return t == 0
	case bool:
		return !t
	default:
		return false
	}
}
