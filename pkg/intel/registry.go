package intel

import (
	"time"

	"go-phishguard/pkg/config"
	"go-phishguard/pkg/logger"
)

// NewSources 按配置实例化情报源；需要密钥却未配置的源直接跳过
func NewSources(cfg config.ExternalAPIConfig, timeout time.Duration) []Source {
	if !cfg.Enabled {
		return nil
	}
	var sources []Source

	if gsb := cfg.GoogleSafeBrowsing; gsb.Enabled {
		if gsb.APIKey == "" {
			logger.Log.Warnf("%s 已启用但未配置 api_key，跳过", SafeBrowsingName)
		} else {
			sources = append(sources, NewSafeBrowsing(SafeBrowsingConfig{
				APIKey:  gsb.APIKey,
				BaseURL: gsb.BaseURL,
				Timeout: timeout,
			}))
		}
	}

	if vt := cfg.VirusTotal; vt.Enabled {
		if vt.APIKey == "" {
			logger.Log.Warnf("%s 已启用但未配置 api_key，跳过", VirusTotalName)
		} else {
			sources = append(sources, NewVirusTotal(VirusTotalConfig{
				APIKey:  vt.APIKey,
				BaseURL: vt.BaseURL,
				Timeout: timeout,
			}))
		}
	}

	// PhishTank 的 app_key 可选
	if pt := cfg.PhishTank; pt.Enabled {
		sources = append(sources, NewPhishTank(PhishTankConfig{
			AppKey:  pt.AppKey,
			BaseURL: pt.BaseURL,
			Timeout: timeout,
		}))
	}

	return sources
}
