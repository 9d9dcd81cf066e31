package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedback-triage/ai"
	"feedback-triage/config"
	"feedback-triage/database"
	"feedback-triage/handlers"
	"feedback-triage/logging"
	"feedback-triage/service"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	dbMonitorInterval = 5 * time.Minute
	shutdownTimeout   = 15 * time.Second
)

func NewServeCommand() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the submission and admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.HTTPAddr = listenAddr
			}
			defer logging.Flush(5 * time.Second)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Address to serve on; overrides HTTP_ADDR (default :8080)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 启动数据库监控
	store.StartDBMonitor(ctx, dbMonitorInterval)

	var genOpts []ai.Option
	if cfg.RedisAddr != "" {
		cache, err := database.NewRedisCache(ctx, database.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			// 缓存不可用不影响提交
			logging.Warn("Redis不可用，生成结果不缓存", logrus.Fields{"error": err, "addr": cfg.RedisAddr})
		} else {
			defer cache.Close()
			genOpts = append(genOpts, ai.WithCache(cache))
		}
	}

	gen, err := ai.NewGenerator(ai.Config{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.LLMTimeout,
	}, genOpts...)
	if err != nil {
		return errors.Wrap(err, "LLM 生成器配置错误")
	}

	router := handlers.NewRouter(handlers.Deps{
		Submitter:  service.NewOrchestrator(gen, store),
		Store:      store,
		Thresholds: thresholds(cfg),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("服务器启动", logrus.Fields{"addr": cfg.HTTPAddr, "model": gen.Model(), "database": cfg.Database})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error("服务器启动失败", logrus.Fields{"error": err})
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("收到退出信号，正在关闭服务器", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "服务器关闭失败")
	}
	return nil
}
