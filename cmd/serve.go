package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go-phishguard/pkg/config"
	"go-phishguard/pkg/consumer"
	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP detection service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(&config.GlobalConfig)
	},
}

func runServe(cfg *config.Config) error {
	defer logger.Log.Sync()
	logBanner(cfg)

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return fmt.Errorf("初始化分析引擎失败: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(eng, server.Options{
		Addr:                fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Version:             Version,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		AdminToken:          cfg.Server.AdminToken,
		ExternalAPIsEnabled: cfg.ExternalAPI.Enabled,
		RiskThresholdHigh:   cfg.Analysis.RiskThresholdHigh,
		RiskThresholdMedium: cfg.Analysis.RiskThresholdMedium,
		TimeoutSeconds:      cfg.Analysis.TimeoutSeconds,
	})

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	if cfg.Kafka.Enabled {
		logger.Log.Infof("Kafka配置: brokers=%v, topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
		c, err := consumer.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, eng)
		if err != nil {
			return fmt.Errorf("初始化Kafka消费者失败: %w", err)
		}
		defer c.Close()
		logger.Log.Info("Kafka消费者初始化成功")

		go func() {
			if err := c.Start(ctx, cfg.Kafka.Topic); err != nil {
				errCh <- fmt.Errorf("Kafka消费失败: %w", err)
			}
		}()
	}

	logger.Log.Info("服务启动完成")

	select {
	case <-ctx.Done():
		logger.Log.Info("接收到退出信号, 开始优雅退出")
	case err := <-errCh:
		if err != nil {
			logger.Log.Errorf("服务异常退出: %v", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("HTTP服务关闭失败: %v", err)
	}
	eng.Wait()
	logger.Log.Info("Credential Phishing Detection System 已停止")
	return nil
}

func logBanner(cfg *config.Config) {
	sources := cfg.EnabledSources()
	enabled := "none"
	if len(sources) > 0 {
		enabled = strings.Join(sources, ", ")
	}

	logger.Log.Info(strings.Repeat("=", 60))
	logger.Log.Info("Credential Phishing Detection System 启动")
	logger.Log.Infof("Version: %s", Version)
	logger.Log.Infof("Host: %s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Log.Infof("Debug: %t", cfg.Server.Debug)
	if cfg.Server.AdminToken == "" {
		logger.Log.Info("未配置 admin_token，黑名单管理接口已关闭")
	}
	logger.Log.Infof("外部情报源启用: %t", cfg.ExternalAPI.Enabled)
	if cfg.ExternalAPI.Enabled {
		logger.Log.Infof("已启用的外部情报源: %s", enabled)
	}
	logger.Log.Info(strings.Repeat("=", 60))
}
