// =============================
// File: internal/app/runner.go
// =============================
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"uusd-router/internal/config"
	"uusd-router/internal/logger"
)

const (
	// routeLogInterval paces the periodic probe quotes the daemon logs.
	routeLogInterval = time.Minute

	metricsReadHeaderTimeout = 5 * time.Second
	shutdownTimeout          = 5 * time.Second
)

// Runner drives the headless daemon. It assembles the engine, keeps
// the price monitor polling, serves Prometheus metrics when an address
// is configured and quotes an optimal route for the probe amount once
// a minute so the log carries a continuous routing record.
type Runner struct {
	logger     *logger.Logger
	config     *config.Config
	shutdownCh chan os.Signal
}

func NewRunner(cfg *config.Config, log *logger.Logger) *Runner {
	return &Runner{
		logger:     log,
		config:     cfg,
		shutdownCh: make(chan os.Signal, 1),
	}
}

// Run blocks until the context is cancelled or SIGINT/SIGTERM arrives.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-r.shutdownCh
		r.logger.Info("📡 Signal received: " + sig.String())
		cancel()
	}()

	engine, err := Build(shutdownCtx, r.config, r.logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if err := engine.Close(closeCtx); err != nil {
			r.logger.Warn("Engine shutdown incomplete", zap.Error(err))
		}
	}()

	mon := engine.NewMonitor(nil)
	go mon.Start()
	defer mon.Stop()

	if r.config.MetricsAddr != "" {
		srv := r.serveMetrics(r.config.MetricsAddr)
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shCancel()
			_ = srv.Shutdown(shCtx)
		}()
	}

	r.logger.Info("🚀 Router daemon running",
		zap.Int("rpc_endpoints", len(r.config.RPCList)),
		zap.String("collateral", engine.Collateral.Symbol),
		zap.Uint64("probe_amount", r.config.ProbeAmount))

	ticker := time.NewTicker(routeLogInterval)
	defer ticker.Stop()

	r.logRoutes(shutdownCtx, engine)
	for {
		select {
		case <-shutdownCtx.Done():
			r.logger.Info("🛑 Stopping route probes")
			return nil
		case <-ticker.C:
			r.logRoutes(shutdownCtx, engine)
		}
	}
}

// logRoutes quotes both directions for the probe amount. The selector
// logs and publishes every decision itself; only failures are reported
// here, and shutdown cancellations are not failures.
func (r *Runner) logRoutes(ctx context.Context, engine *App) {
	amount := engine.ProbeWei()

	depositCtx, cancelDeposit := context.WithTimeout(ctx, r.config.RequestTimeout)
	_, err := engine.Selector.OptimalDepositRoute(depositCtx, amount, false)
	cancelDeposit()
	if err != nil && ctx.Err() == nil {
		r.logger.LogError("Deposit probe failed", err)
	}

	withdrawCtx, cancelWithdraw := context.WithTimeout(ctx, r.config.RequestTimeout)
	_, err = engine.Selector.OptimalWithdrawRoute(withdrawCtx, amount, false)
	cancelWithdraw()
	if err != nil && ctx.Err() == nil {
		r.logger.LogError("Withdraw probe failed", err)
	}
}

func (r *Runner) serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}
	go func() {
		r.logger.Info("📊 Metrics listener started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Metrics listener failed", zap.Error(err))
		}
	}()
	return srv
}

// Shutdown flushes the log tail after Run returns.
func (r *Runner) Shutdown() {
	r.logger.Info("👋 Router daemon shut down gracefully")
	if err := r.logger.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
	}
}
