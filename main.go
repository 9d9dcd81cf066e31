// 程序入口：serve 启动 HTTP 服务，export/stats/clear 为运维命令
package main

import (
	"context"
	"time"

	"feedback-triage/analytics"
	"feedback-triage/config"
	"feedback-triage/database"
	"feedback-triage/logging"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	envFile  = config.DefaultEnvFile
)

var rootCmd = &cobra.Command{
	Use:   "feedback-triage",
	Short: "Collects customer ratings and reviews and triages them with an LLM",
	Long: `feedback-triage accepts a 1-5 star rating plus a short review, asks an LLM for a
reply to the customer, a one-sentence summary and recommended actions for staff,
and keeps every submission in a local store that operators can query and export.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(
		NewServeCommand(),
		NewExportCommand(),
		NewStatsCommand(),
		NewClearCommand(),
	)

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (trace,debug,info,warn,error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", envFile,
		"Optional dotenv file read before the process environment")

	if err := rootCmd.Execute(); err != nil {
		logging.Flush(2 * time.Second)
		log.WithError(err).Fatal("could not execute root command")
	}
}

// loadConfig 读取配置并初始化日志
func loadConfig(logToFile bool) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	opts := logging.Options{Level: cfg.LogLevel}
	if logToFile {
		opts.File = cfg.LogFile
	}
	if err := logging.Init(opts); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*database.Store, error) {
	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "无法打开反馈存储")
	}
	return store, nil
}

func thresholds(cfg *config.Config) analytics.Thresholds {
	return analytics.Thresholds{
		PositiveMin: cfg.PositiveThreshold,
		NegativeMax: cfg.NegativeThreshold,
		Neutral:     cfg.NeutralRating,
	}
}
