// ==================================
// File: internal/history/history.go
// ==================================
// Package history reconstructs the AMM-implied dollar price over a
// time window. Strategies are tried in order (swap events first, block
// sampling as the fallback); assembled series are cached with a short
// TTL and concurrent requests for the same window share one flight.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"uusd-router/internal/events"
	"uusd-router/internal/metrics"
	"uusd-router/internal/uusd"
)

const (
	// avgBlockSeconds converts a time window into a block window.
	avgBlockSeconds = 12
	// maxPointsPerRequest bounds the batch size of one sampling pass.
	maxPointsPerRequest = 1000

	defaultCacheTTL = 5 * time.Minute
	cacheName       = "history"
)

var (
	// ErrNoHistory means every strategy came back empty for the window.
	ErrNoHistory = errors.New("no price history available")

	// ErrInsufficientData marks a strategy that found too little raw
	// material for a usable series; the next strategy is tried.
	ErrInsufficientData = errors.New("insufficient history data")
)

// PriceDataPoint is one sampled point of the AMM-implied dollar price.
type PriceDataPoint struct {
	Timestamp   uint64 `json:"timestamp"` // unix seconds
	PriceUsd    uint64 `json:"price_usd"` // six-decimal USD scale
	BlockNumber uint64 `json:"block_number"`
}

// Config bounds one history request.
type Config struct {
	MaxDataPoints  int
	TimeRangeHours int
}

// Key identifies this window in the cache and in external mirrors.
func (c Config) Key() string {
	return fmt.Sprintf("%dh:%d", c.TimeRangeHours, c.MaxDataPoints)
}

func (c Config) validate() error {
	if c.MaxDataPoints <= 0 || c.TimeRangeHours <= 0 {
		return fmt.Errorf("%w: history config must be positive", uusd.ErrInvalidArgument)
	}
	if c.MaxDataPoints > maxPointsPerRequest {
		return fmt.Errorf("%w: at most %d points per request", uusd.ErrInvalidArgument, maxPointsPerRequest)
	}
	return nil
}

// ReferencePriceFunc resolves the collateral's USD reference price for
// implied pricing, once per pass.
type ReferencePriceFunc func(ctx context.Context) (uint64, error)

// Strategy produces a price series for one window.
type Strategy interface {
	Name() string
	Load(ctx context.Context, cfg Config) ([]PriceDataPoint, error)
}

// Source serves price history from an ordered strategy chain behind a
// TTL cache. Concurrent callers of the same window are coalesced into
// a single flight; only successful series are stored, so an abandoned
// or failed pass never pollutes the cache.
type Source struct {
	strategies []Strategy
	cache      *seriesCache
	flight     singleflight.Group
	bus        *events.Bus
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewSource builds a source over the given strategies, tried in order.
// ttl <= 0 selects the default; bus and mc may be nil.
func NewSource(strategies []Strategy, ttl time.Duration, bus *events.Bus, mc *metrics.Collector, logger *zap.Logger) *Source {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Source{
		strategies: strategies,
		cache:      newSeriesCache(ttl),
		bus:        bus,
		metrics:    mc,
		logger:     logger.Named("history"),
	}
}

// PriceHistory returns the ascending price series for the window,
// served from cache when fresh.
func (s *Source) PriceHistory(ctx context.Context, cfg Config) ([]PriceDataPoint, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	key := cfg.Key()

	if points, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheHit(cacheName)
		return points, nil
	}
	s.metrics.RecordCacheMiss(cacheName)

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		points, err := s.load(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, points)
		return points, nil
	})
	if err != nil {
		return nil, err
	}

	points := v.([]PriceDataPoint)
	out := make([]PriceDataPoint, len(points))
	copy(out, points)
	return out, nil
}

// Prime seeds the cache for a window, typically from a persistent
// mirror on boot. Primed entries age out on the normal TTL, so a
// stale seed only bridges the gap until the first live load.
func (s *Source) Prime(cfg Config, points []PriceDataPoint) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	s.cache.Set(cfg.Key(), points)
	s.logger.Debug("Price history primed",
		zap.String("window", cfg.Key()),
		zap.Int("points", len(points)))
	return nil
}

func (s *Source) load(ctx context.Context, cfg Config) ([]PriceDataPoint, error) {
	start := time.Now()
	var lastErr error
	for _, strat := range s.strategies {
		points, err := strat.Load(ctx, cfg)
		if err != nil {
			s.logger.Warn("History strategy failed, trying next",
				zap.String("strategy", strat.Name()),
				zap.Error(err))
			lastErr = err
			continue
		}
		if len(points) == 0 {
			s.logger.Debug("History strategy returned no points",
				zap.String("strategy", strat.Name()))
			lastErr = ErrNoHistory
			continue
		}

		s.publish(cfg, strat.Name(), len(points))
		s.logger.Debug("Price history loaded",
			zap.String("strategy", strat.Name()),
			zap.Int("points", len(points)),
			zap.Int("range_hours", cfg.TimeRangeHours),
			zap.Duration("elapsed", time.Since(start)))
		return points, nil
	}
	if lastErr == nil {
		lastErr = ErrNoHistory
	}
	return nil, lastErr
}

func (s *Source) publish(cfg Config, strategy string, points int) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(events.HistoryLoadedEvent{
		BaseEvent:  events.BaseEvent{EventType: events.HistoryLoaded, EventTime: time.Now()},
		RangeHours: cfg.TimeRangeHours,
		Points:     points,
		Strategy:   strategy,
	})
}

// blockWindow converts the configured time range into a block count,
// at least one block.
func blockWindow(cfg Config) uint64 {
	blocks := uint64(cfg.TimeRangeHours) * 3600 / avgBlockSeconds
	if blocks == 0 {
		blocks = 1
	}
	return blocks
}
