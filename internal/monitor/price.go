// =================================
// File: internal/monitor/price.go
// =================================
// Package monitor polls the live dollar price at a fixed interval and
// keeps a bounded in-memory series for the terminal UI.
package monitor

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"uusd-router/internal/events"
	"uusd-router/internal/metrics"
	"uusd-router/internal/uusd"
)

const (
	defaultInterval = 15 * time.Second
	updateTimeout   = 10 * time.Second
)

// Price sources reported on PriceUpdated events.
const (
	SourceSpot = "spot"
	SourceAmm  = "amm"
)

// PriceReader supplies the on-chain spot price and collateral ratio.
type PriceReader interface {
	DollarPriceUsd(ctx context.Context) (uint64, error)
	CollateralRatio(ctx context.Context) (uint64, error)
}

var _ PriceReader = (*uusd.Reader)(nil)

// ImpliedPriceFunc resolves the AMM-implied dollar price, USD-scaled.
type ImpliedPriceFunc func(ctx context.Context) (uint64, error)

// Update is one observed price refresh.
type Update struct {
	Time            time.Time
	SpotUsd         uint64
	ImpliedUsd      uint64
	CollateralRatio uint64
	ChangePercent   float64
}

// UpdateCallback is invoked after every successful refresh.
type UpdateCallback func(Update)

// PriceMonitor polls prices on a ticker until stopped.
type PriceMonitor struct {
	reader   PriceReader
	implied  ImpliedPriceFunc
	interval time.Duration
	series   *PriceSeries
	bus      *events.Bus
	metrics  *metrics.Collector
	logger   *zap.Logger
	callback UpdateCallback

	initialPrice uint64
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewPriceMonitor creates a monitor. The implied price func and the
// callback may be nil; a non-positive interval falls back to 15s.
func NewPriceMonitor(reader PriceReader, implied ImpliedPriceFunc, interval time.Duration,
	bus *events.Bus, mc *metrics.Collector, logger *zap.Logger,
	callback UpdateCallback) *PriceMonitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PriceMonitor{
		reader:   reader,
		implied:  implied,
		interval: interval,
		series:   NewPriceSeries(0),
		bus:      bus,
		metrics:  mc,
		logger:   logger.Named("monitor"),
		callback: callback,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Series returns the bounded series of observed spot prices.
func (pm *PriceMonitor) Series() *PriceSeries {
	return pm.series
}

// Start begins polling and blocks until Stop is called. The first
// refresh runs immediately, then on every tick.
func (pm *PriceMonitor) Start() {
	pm.logger.Info("📈 Starting price monitor",
		zap.Duration("interval", pm.interval))
	pm.publishStarted()

	pm.updatePrice()

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.updatePrice()
		case <-pm.ctx.Done():
			pm.logger.Debug("Price monitor stopped")
			pm.publishStopped("stopped")
			return
		}
	}
}

// Stop stops the monitoring loop.
func (pm *PriceMonitor) Stop() {
	if pm.cancel != nil {
		pm.cancel()
	}
}

// updatePrice fetches current prices and fans the observation out to
// the series, the callback, metrics and the event bus.
func (pm *PriceMonitor) updatePrice() {
	ctx, cancel := context.WithTimeout(pm.ctx, updateTimeout)
	defer cancel()

	spot, err := pm.reader.DollarPriceUsd(ctx)
	if err != nil {
		pm.logger.Error("Failed to read dollar price", zap.Error(err))
		return
	}

	ratio, err := pm.reader.CollateralRatio(ctx)
	if err != nil {
		pm.logger.Warn("Failed to read collateral ratio", zap.Error(err))
		ratio = 0
	}

	var implied uint64
	if pm.implied != nil {
		implied, err = pm.implied(ctx)
		if err != nil {
			pm.logger.Warn("Failed to read AMM implied price", zap.Error(err))
			implied = 0
		}
	}

	if pm.initialPrice == 0 {
		pm.initialPrice = spot
	}

	percentChange := 0.0
	if pm.initialPrice > 0 {
		percentChange = (float64(spot) - float64(pm.initialPrice)) / float64(pm.initialPrice) * 100
	}
	percentChange = math.Floor(percentChange*100) / 100

	now := time.Now()
	pm.series.Append(Point{Time: now, PriceUsd: spot})

	if pm.metrics != nil {
		pm.metrics.SetDollarPrice(SourceSpot, spot)
		if implied > 0 {
			pm.metrics.SetDollarPrice(SourceAmm, implied)
		}
		pm.metrics.SetCollateralRatio(ratio)
	}

	pm.publishUpdate(SourceSpot, spot, ratio)
	if implied > 0 {
		pm.publishUpdate(SourceAmm, implied, ratio)
	}

	if pm.callback != nil {
		pm.callback(Update{
			Time:            now,
			SpotUsd:         spot,
			ImpliedUsd:      implied,
			CollateralRatio: ratio,
			ChangePercent:   percentChange,
		})
	}
}

func (pm *PriceMonitor) publishUpdate(source string, priceUsd, ratio uint64) {
	if pm.bus == nil {
		return
	}
	_ = pm.bus.Publish(events.PriceUpdatedEvent{
		BaseEvent:       events.BaseEvent{EventType: events.PriceUpdated, EventTime: time.Now()},
		Source:          source,
		PriceUsd:        priceUsd,
		CollateralRatio: ratio,
	})
}

func (pm *PriceMonitor) publishStarted() {
	if pm.bus == nil {
		return
	}
	_ = pm.bus.Publish(events.MonitorStartedEvent{
		BaseEvent: events.BaseEvent{EventType: events.MonitorStarted, EventTime: time.Now()},
		Interval:  pm.interval,
	})
}

func (pm *PriceMonitor) publishStopped(reason string) {
	if pm.bus == nil {
		return
	}
	_ = pm.bus.Publish(events.MonitorStoppedEvent{
		BaseEvent: events.BaseEvent{EventType: events.MonitorStopped, EventTime: time.Now()},
		Reason:    reason,
	})
}
