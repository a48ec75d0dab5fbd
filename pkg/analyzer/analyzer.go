package analyzer

import (
	"context"

	"go-phishguard/pkg/intel"
	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/models"
)

// PhishingAnalyzer 钓鱼分析器：域名特征 + 黑名单 + 外部情报
type PhishingAnalyzer struct {
	blacklist    *Blacklist
	hosts        HostLookup
	orchestrator *intel.Orchestrator
}

// NewPhishingAnalyzer hosts 与 orchestrator 可为 nil
func NewPhishingAnalyzer(blacklist *Blacklist, hosts HostLookup, orchestrator *intel.Orchestrator) *PhishingAnalyzer {
	if orchestrator == nil {
		orchestrator = intel.NewOrchestrator(nil, 0)
	}
	return &PhishingAnalyzer{
		blacklist:    blacklist,
		hosts:        hosts,
		orchestrator: orchestrator,
	}
}

func (pa *PhishingAnalyzer) Blacklist() *Blacklist {
	return pa.blacklist
}

func (pa *PhishingAnalyzer) Orchestrator() *intel.Orchestrator {
	return pa.orchestrator
}

// AnalyzeInternal 只做本地分析：域名特征与黑名单
func (pa *PhishingAnalyzer) AnalyzeInternal(rawURL string) models.InternalAnalysis {
	result := models.InternalAnalysis{
		DomainAnalysis: AnalyzeDomain(rawURL),
		URL:            rawURL,
	}

	if result.Domain != "" && pa.blacklist != nil {
		result.InBlacklist = pa.blacklist.Contains(result.Domain)
	}
	if result.IsIPLiteral && pa.hosts != nil {
		result.Host = pa.hosts.Lookup(result.Hostname)
	}

	logger.Log.Debugf("内部分析完成: domain=%s, ip=%t, blacklist=%t, depth=%d",
		result.Domain, result.IsIPLiteral, result.InBlacklist, result.SubdomainDepth)
	return result
}

// Analyze 本地分析后并发查询外部情报源
func (pa *PhishingAnalyzer) Analyze(ctx context.Context, rawURL string) (models.InternalAnalysis, []models.ThreatVerdict) {
	internal := pa.AnalyzeInternal(rawURL)
	external := pa.orchestrator.CheckAll(ctx, rawURL)
	return internal, external
}
