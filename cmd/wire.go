package cmd

import (
	"time"

	"go-phishguard/pkg/alerter"
	"go-phishguard/pkg/analyzer"
	"go-phishguard/pkg/config"
	"go-phishguard/pkg/engine"
	"go-phishguard/pkg/intel"
	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/risk"
)

// buildEngine 按配置组装检测流水线，返回的 cleanup 释放 GeoIP 库
func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	hosts, err := analyzer.OpenGeoHostLookup(cfg.GeoIP.CityPath, cfg.GeoIP.ASNPath)
	if err != nil {
		return nil, nil, err
	}

	blacklist := analyzer.NewBlacklist(cfg.Blacklist.Path)
	orchestrator := intel.NewOrchestrator(intel.NewSources(cfg.ExternalAPI, cfg.Timeout()), cfg.Timeout())
	pa := analyzer.NewPhishingAnalyzer(blacklist, hosts, orchestrator)
	calc := risk.NewCalculator(cfg.Analysis.RiskThresholdHigh, cfg.Analysis.RiskThresholdMedium)

	var al *alerter.Alerter
	if cfg.Webhook.URL != "" {
		al = alerter.NewAlerter(cfg.Webhook.URL, time.Duration(cfg.Webhook.CooldownMinutes)*time.Minute)
	} else {
		logger.Log.Info("未配置 webhook，拦截告警仅记录日志")
	}

	return engine.New(pa, calc, al), hosts.Close, nil
}
