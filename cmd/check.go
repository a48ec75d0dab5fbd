package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-phishguard/pkg/config"
	"go-phishguard/pkg/models"

	"github.com/spf13/cobra"
)

var (
	checkMethod  string
	checkHeaders map[string]string
	checkBody    string
)

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Analyze a single request from the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.AnalysisRequest{
			URL:       args[0],
			Method:    checkMethod,
			Headers:   checkHeaders,
			Timestamp: time.Now(),
		}
		if checkBody != "" {
			if err := json.Unmarshal([]byte(checkBody), &req.Body); err != nil {
				return fmt.Errorf("invalid --body JSON: %w", err)
			}
		}

		eng, cleanup, err := buildEngine(&config.GlobalConfig)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		verdict, err := eng.Analyze(ctx, req)
		// 拦截告警在后台发送，退出前等待完成
		eng.Wait()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkMethod, "method", "X", "POST", "HTTP method of the request")
	checkCmd.Flags().StringToStringVarP(&checkHeaders, "header", "H", nil, "request header name=value (repeatable)")
	checkCmd.Flags().StringVarP(&checkBody, "body", "d", "", "request body as a JSON object")
}
