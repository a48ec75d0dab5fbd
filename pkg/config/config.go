package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host           string
		Port           int
		Debug          bool
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		// 黑名单管理接口的令牌，为空时管理接口关闭
		AdminToken string `mapstructure:"admin_token"`
	}
	Log      LogConfig
	Analysis struct {
		TimeoutSeconds      int `mapstructure:"timeout_seconds"`
		RiskThresholdHigh   int `mapstructure:"risk_threshold_high"`
		RiskThresholdMedium int `mapstructure:"risk_threshold_medium"`
	}
	Blacklist struct {
		Path string
	}
	ExternalAPI ExternalAPIConfig `mapstructure:"external_api"`
	Kafka       struct {
		Enabled bool
		Brokers []string
		Topic   string
		GroupID string `mapstructure:"group_id"`
	}
	GeoIP struct {
		CityPath string `mapstructure:"city_path"`
		ASNPath  string `mapstructure:"asn_path"`
	}
	Webhook struct {
		URL             string
		CooldownMinutes int `mapstructure:"cooldown_minutes"`
	}
}

type LogConfig struct {
	Level     string
	Path      string
	ErrorPath string `mapstructure:"error_path"`
	Console   bool
}

// ExternalAPIConfig 外部威胁情报源配置
type ExternalAPIConfig struct {
	Enabled            bool
	GoogleSafeBrowsing struct {
		Enabled bool
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"google_safe_browsing"`
	VirusTotal struct {
		Enabled bool
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"virustotal"`
	PhishTank struct {
		Enabled bool
		AppKey  string `mapstructure:"app_key"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"phishtank"`
}

var GlobalConfig Config

// Init 读取配置文件并解析到 GlobalConfig。path 为空时按默认路径查找 config.yaml
func Init(path string) error {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PHISHGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件时使用默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	GlobalConfig = cfg
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.admin_token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "logs/app.log")
	v.SetDefault("log.error_path", "logs/error.log")
	v.SetDefault("log.console", true)

	v.SetDefault("analysis.timeout_seconds", 3)
	v.SetDefault("analysis.risk_threshold_high", 70)
	v.SetDefault("analysis.risk_threshold_medium", 40)

	v.SetDefault("blacklist.path", "data/blacklist.json")

	v.SetDefault("external_api.enabled", false)
	v.SetDefault("external_api.google_safe_browsing.enabled", false)
	v.SetDefault("external_api.google_safe_browsing.api_key", "")
	v.SetDefault("external_api.google_safe_browsing.base_url", "")
	v.SetDefault("external_api.virustotal.enabled", false)
	v.SetDefault("external_api.virustotal.api_key", "")
	v.SetDefault("external_api.virustotal.base_url", "")
	v.SetDefault("external_api.phishtank.enabled", false)
	v.SetDefault("external_api.phishtank.app_key", "")
	v.SetDefault("external_api.phishtank.base_url", "")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "login-requests")
	v.SetDefault("kafka.group_id", "phishguard")

	v.SetDefault("geoip.city_path", "")
	v.SetDefault("geoip.asn_path", "")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.cooldown_minutes", 60)
}

// Validate 检查配置项之间的约束
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		return fmt.Errorf("analysis timeout must be positive, got %d", c.Analysis.TimeoutSeconds)
	}
	if c.Analysis.RiskThresholdHigh <= 0 || c.Analysis.RiskThresholdMedium <= 0 {
		return fmt.Errorf("risk thresholds must be positive, got high=%d medium=%d",
			c.Analysis.RiskThresholdHigh, c.Analysis.RiskThresholdMedium)
	}
	if c.Analysis.RiskThresholdMedium > c.Analysis.RiskThresholdHigh {
		return fmt.Errorf("risk_threshold_medium (%d) exceeds risk_threshold_high (%d)",
			c.Analysis.RiskThresholdMedium, c.Analysis.RiskThresholdHigh)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka enabled but brokers or topic missing")
	}
	return nil
}

// Timeout 单个外部情报源调用的超时时间
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

// EnabledSources 返回会被实例化的外部情报源名称。
// 需要密钥的源在没有密钥时不启用
func (c *Config) EnabledSources() []string {
	return c.ExternalAPI.EnabledSources()
}

func (e ExternalAPIConfig) EnabledSources() []string {
	if !e.Enabled {
		return nil
	}
	var names []string
	if e.GoogleSafeBrowsing.Enabled && e.GoogleSafeBrowsing.APIKey != "" {
		names = append(names, "google_safe_browsing")
	}
	if e.VirusTotal.Enabled && e.VirusTotal.APIKey != "" {
		names = append(names, "virustotal")
	}
	if e.PhishTank.Enabled {
		names = append(names, "phishtank")
	}
	return names
}
