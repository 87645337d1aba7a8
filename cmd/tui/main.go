// ======================
// File: cmd/tui/main.go
// ======================
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"uusd-router/internal/app"
	"uusd-router/internal/config"
	"uusd-router/internal/logger"
	"uusd-router/internal/tui"
)

const (
	ringSize        = 256
	updateThrottle  = time.Second
	shutdownTimeout = 5 * time.Second
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

	// The dashboard owns the terminal, so logs go to the file and the
	// in-memory ring the log pane renders.
	ring := logger.NewRing(ringSize)
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = filepath.Join(cfg.LogDir, "router.log")
	logCfg.Development = cfg.DebugLogging
	logCfg.Ring = ring
	appLogger, err := logger.NewTUI(logCfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	appLogger.Info("🚀 Starting UUSD router dashboard")

	engine, err := app.Build(rootCtx, cfg, appLogger.Logger)
	if err != nil {
		appLogger.Fatal("💥 Failed to assemble engine", zap.Error(err))
	}

	bridge := tui.NewBridge(updateThrottle, appLogger.Logger)
	bridge.Attach(engine.Bus)

	mon := engine.NewMonitor(bridge.OnPriceUpdate)
	go mon.Start()

	model := tui.NewModel(tui.Deps{
		Planner:     engine.Selector,
		History:     engine.History,
		Ring:        ring,
		Bridge:      bridge,
		ProbeAmount: engine.ProbeWei(),
		Chart:       engine.ChartConfig(),
		Logger:      appLogger.Logger,
	})

	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		if _, err := program.Run(); err != nil {
			appLogger.Error("💥 Dashboard failed", zap.Error(err))
		}
		stop()
	}()

	<-rootCtx.Done()

	appLogger.Info("🛑 Shutting down dashboard")
	program.Quit()
	mon.Stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := engine.Close(closeCtx); err != nil {
		appLogger.Warn("Engine shutdown incomplete", zap.Error(err))
	}
}
