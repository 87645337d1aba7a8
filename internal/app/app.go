// ==========================
// File: internal/app/app.go
// ==========================
package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"uusd-router/internal/amm"
	"uusd-router/internal/chain"
	"uusd-router/internal/config"
	"uusd-router/internal/events"
	"uusd-router/internal/history"
	"uusd-router/internal/metrics"
	"uusd-router/internal/monitor"
	"uusd-router/internal/router"
	"uusd-router/internal/storage"
	"uusd-router/internal/storage/postgres"
	"uusd-router/internal/uusd"
	"uusd-router/pkg/ethrpc"
)

const busBuffer = 64

// App is the assembled engine: one dial pool, one event bus and every
// service wired on top of them. Both entry points (the daemon and the
// dashboard) consume the same App so they never drift apart in how the
// stack is put together.
type App struct {
	Config     *config.Config
	Bus        *events.Bus
	Metrics    *metrics.Collector
	Selector   *router.Selector
	History    storage.HistoryProvider
	Store      storage.Storage
	Reader     *uusd.Reader
	Quoter     *amm.PoolQuoter
	Collateral uusd.CollateralOption

	pool     *ethrpc.Pool
	refPrice func(ctx context.Context) (uint64, error)
	logger   *zap.Logger
}

// Build dials the RPC pool and assembles the engine from config. When
// postgres_dsn is set the route audit mirror attaches to the bus, the
// history source gains a persisting decorator and the chart cache is
// warmed from previously mirrored points.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	bus := events.NewBus(log, busBuffer)
	mc := metrics.NewCollector()

	pool, err := ethrpc.DialPool(ctx, cfg.RPCList, cfg.ChainID, log)
	if err != nil {
		return nil, fmt.Errorf("dial rpc pool: %w", err)
	}
	client := chain.NewClient(pool, mc, log)

	poolAddr := common.HexToAddress(cfg.PoolAddress)
	reader, err := uusd.NewReader(client, poolAddr,
		common.HexToAddress(cfg.TwapOracleAddress),
		common.HexToAddress(cfg.DollarAddress),
		cfg.RequestTimeout, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create pool reader: %w", err)
	}

	options := collateralOptions(cfg.Collaterals)
	wellKnown := options[0]

	thresholds := uusd.NewThresholdSource(client, poolAddr, cfg.ThresholdTTL, bus, mc, log)
	pricing := uusd.NewPricingService(reader, thresholds, wellKnown, options, log)

	quoter, err := amm.NewPoolQuoter(client,
		common.HexToAddress(cfg.CurvePoolAddress),
		cfg.CurveDollarLeg, cfg.CurveCollateralLeg, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create curve quoter: %w", err)
	}

	refPrice := collateralRefPrice(reader, wellKnown.Address)

	selector := router.NewSelector(pricing, quoter, router.ReferencePriceFunc(refPrice),
		wellKnown, cfg.BranchTimeout, bus, mc, log)

	strategies := []history.Strategy{
		history.NewSwapEventSource(client, quoter, cfg.CurveDollarLeg,
			history.ReferencePriceFunc(refPrice), mc, log),
		history.NewBlockSampler(client, quoter,
			history.ReferencePriceFunc(refPrice), mc, log),
	}
	source := history.NewSource(strategies, cfg.HistoryTTL, bus, mc, log)

	app := &App{
		Config:     cfg,
		Bus:        bus,
		Metrics:    mc,
		Selector:   selector,
		History:    source,
		Reader:     reader,
		Quoter:     quoter,
		Collateral: wellKnown,
		pool:       pool,
		refPrice:   refPrice,
		logger:     log,
	}

	if cfg.PostgresDSN != "" {
		if err := app.attachStorage(ctx, source); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return app, nil
}

func (a *App) attachStorage(ctx context.Context, source *history.Source) error {
	store, err := postgres.NewStorage(a.Config.PostgresDSN, a.logger)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := store.RunMigrations(); err != nil {
		_ = store.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	storage.NewMirror(store, a.logger).Attach(a.Bus)
	a.Store = store
	a.History = storage.NewPersistingHistory(source, store, a.logger)

	// Warm the chart cache from the mirror so a series renders before
	// the first chain scan completes.
	chart := a.ChartConfig()
	rows, err := store.LoadPricePoints(ctx, chart.Key(), chart.MaxDataPoints)
	if err != nil {
		a.logger.Warn("Failed to load mirrored price history", zap.Error(err))
		return nil
	}
	if len(rows) > 0 {
		if err := source.Prime(chart, storage.PointsFromModels(rows)); err == nil {
			a.logger.Info("📊 Price history primed from mirror",
				zap.Int("points", len(rows)))
		}
	}
	return nil
}

// NewMonitor builds the polling price monitor for this engine. The
// implied leg converts the pool ratio through the collateral's oracle
// price.
func (a *App) NewMonitor(callback monitor.UpdateCallback) *monitor.PriceMonitor {
	implied := func(ctx context.Context) (uint64, error) {
		ref, err := a.refPrice(ctx)
		if err != nil {
			return 0, err
		}
		return a.Quoter.ImpliedUsdPrice(ctx, ref)
	}
	return monitor.NewPriceMonitor(a.Reader, implied, a.Config.MonitorInterval,
		a.Bus, a.Metrics, a.logger, callback)
}

// ChartConfig is the history window the config selects.
func (a *App) ChartConfig() history.Config {
	return history.Config{
		MaxDataPoints:  a.Config.ChartPoints,
		TimeRangeHours: a.Config.ChartRangeHours,
	}
}

// ProbeWei is the configured probe amount in raw 18-decimal units.
func (a *App) ProbeWei() *uint256.Int {
	return new(uint256.Int).Mul(
		uint256.NewInt(a.Config.ProbeAmount),
		uint256.NewInt(1_000_000_000_000_000_000))
}

// Close shuts the engine down. The bus drains first so attached
// mirrors flush their queue, then the store and the dial pool release.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if err := a.Bus.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.pool.Close()
	return firstErr
}

// collateralRefPrice resolves the collateral's oracle USD price. Both
// the AMM conversion and the history strategies price the counter leg
// through it.
func collateralRefPrice(reader *uusd.Reader, addr common.Address) func(context.Context) (uint64, error) {
	return func(ctx context.Context) (uint64, error) {
		info, err := reader.CollateralInformation(ctx, addr)
		if err != nil {
			return 0, err
		}
		return info.Price, nil
	}
}

func collateralOptions(cfgs []config.CollateralConfig) []uusd.CollateralOption {
	options := make([]uusd.CollateralOption, 0, len(cfgs))
	for _, c := range cfgs {
		options = append(options, uusd.CollateralOption{
			Index:           c.Index,
			Symbol:          c.Symbol,
			Address:         common.HexToAddress(c.Address),
			MintingFee:      c.MintingFee,
			RedemptionFee:   c.RedemptionFee,
			MissingDecimals: c.MissingDecimals,
		})
	}
	if len(options) == 0 {
		options = append(options, uusd.DefaultCollateral())
	}
	return options
}
