package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	logpkg "wisefido-rfid/internal/common/logger"
	"wisefido-rfid/internal/config"
	"wisefido-rfid/internal/console"
	"wisefido-rfid/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志（stderr）
	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-rfid")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting wisefido-rfid")

	// 交互界面（stdout）
	con := console.New(os.Stdin, os.Stdout, log)

	svc, err := service.NewInventoryService(cfg, log, con)
	if err != nil {
		log.Fatal("Failed to create inventory service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start 无论成功与否都要回报，Stop 之前必须等它返回
	startDone := make(chan error, 1)
	go func() {
		startDone <- svc.Start(ctx)
	}()

	// 控制台退出（quit / EOF）即结束会话
	consoleDone := make(chan error, 1)
	go func() {
		consoleDone <- con.Run(ctx, svc.Submit)
	}()

	startRunning := true
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-startDone:
		startRunning = false
		if err != nil {
			log.Error("Service error", zap.Error(err))
		}
	case err := <-consoleDone:
		if err != nil {
			log.Error("Console error", zap.Error(err))
		}
	}
	cancel()

	if startRunning {
		if err := <-startDone; err != nil {
			log.Error("Service error", zap.Error(err))
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil {
		log.Error("Error stopping service", zap.Error(err))
	}

	log.Info("Service stopped")
}
