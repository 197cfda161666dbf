package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rovshanmuradov/tokensale/internal/app"
	"github.com/rovshanmuradov/tokensale/internal/config"
	"github.com/rovshanmuradov/tokensale/internal/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	logCfg.Pretty = cfg.PrettyLogs
	appLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	appLogger.Info("Starting token sale", zap.String("config", *configPath))

	runner := app.NewRunner(cfg, appLogger, os.Stdout)
	exitCode := 0
	if err := runner.Initialize(rootCtx); err != nil {
		appLogger.LogError("Failed to initialize sale", err)
		exitCode = 1
	} else if _, err := runner.Run(rootCtx); err != nil {
		appLogger.LogError("Scenario execution error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
}
