package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iabetor/okto/internal/app"
	"github.com/iabetor/okto/internal/config"
	"github.com/iabetor/okto/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/okto.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infof("[main] Okto 启动中 (log_level=%s)", cfg.Log.Level)
	if cfg.News.APIKey == "" {
		logger.Warn("[main] 未配置 news.api_key，NewsAPI 抓取将被跳过")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(cfg)
	if err != nil {
		logger.Errorf("[main] 初始化失败: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	go a.RunEviction(ctx)

	srv := a.Server()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
	case err := <-errCh:
		if err != nil {
			logger.Errorf("[main] HTTP 服务异常退出: %v", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("[main] 关闭 HTTP 服务失败: %v", err)
	}

	logger.Info("[main] Okto 已停止")
}
