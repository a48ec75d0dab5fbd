package cmd

import (
	"fmt"
	"os"

	"go-phishguard/pkg/config"
	"go-phishguard/pkg/logger"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var configFile string

var rootCmd = &cobra.Command{
	Use:           "phishguard",
	Short:         "Credential phishing detection service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configFile); err != nil {
			return fmt.Errorf("初始化配置失败: %w", err)
		}
		if err := logger.Init(config.GlobalConfig.Log); err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default config/config.yaml)")
	rootCmd.AddCommand(serveCmd, checkCmd, blacklistCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
