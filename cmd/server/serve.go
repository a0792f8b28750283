package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sql-smart-go/internal/app"
	"sql-smart-go/internal/config"
	"sql-smart-go/pkg/log"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Train schema context and start the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. 初始化配置，缺少必需项时在任何网络连接之前退出
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// 2. 初始化日志记录器
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 连接数据库与各个后端，组装 Service
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Errorf("初始化应用失败: %v", err)
		return err
	}
	defer a.Close()

	// 4. 同步训练 schema 上下文，完成后才对外提供服务
	if _, err := a.Bootstrap(ctx); err != nil {
		log.Errorf("schema 训练失败: %v", err)
		return err
	}

	// 5. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: a.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		log.Errorf("HTTP 服务监听失败: %v", err)
		return err
	case <-quit:
	}
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
		return err
	}
	log.Info("服务已优雅关闭")
	return nil
}
