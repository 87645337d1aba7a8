// =========================
// File: cmd/router/main.go
// =========================
package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"

	"go.uber.org/zap"

	"uusd-router/internal/app"
	"uusd-router/internal/config"
	"uusd-router/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = filepath.Join(cfg.LogDir, "router.log")
	logCfg.Development = cfg.DebugLogging
	appLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	runner := app.NewRunner(cfg, appLogger)
	if err := runner.Run(context.Background()); err != nil {
		appLogger.Fatal("💥 Router daemon failed", zap.Error(err))
	}
	runner.Shutdown()
}
