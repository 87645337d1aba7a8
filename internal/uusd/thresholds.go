// ==================================
// File: internal/uusd/thresholds.go
// ==================================
package uusd

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"uusd-router/internal/chain"
	"uusd-router/internal/events"
	"uusd-router/internal/metrics"
)

// Storage anchors for the pool diamond. The base slot is derived from
// the storage label once, so both threshold offsets share a single
// source of truth instead of two hand-copied constants.
const (
	poolStorageLabel          = "uusd.dollar.pool.storage"
	mintThresholdSlotOffset   = 6
	redeemThresholdSlotOffset = 7
)

const (
	defaultThresholdTTL = 60 * time.Second
	// Sanity bounds for protocol thresholds, USD-scaled ($0.50..$1.50).
	// A stored value outside this band means the slot layout moved or
	// the read is garbage; it is an error, never clamped.
	minSaneThreshold = 500_000
	maxSaneThreshold = 1_500_000
)

var poolStorageSlot = func() *big.Int {
	h := crypto.Keccak256Hash([]byte(poolStorageLabel))
	return new(big.Int).Sub(h.Big(), big.NewInt(1))
}()

func thresholdSlot(offset int64) common.Hash {
	return common.BigToHash(new(big.Int).Add(poolStorageSlot, big.NewInt(offset)))
}

// ThresholdSource reads the protocol's mint and redeem TWAP gates from
// raw pool storage, caching the pair for a short TTL. A cache hit
// returns without touching the chain.
type ThresholdSource struct {
	chain    chain.Reader
	poolAddr common.Address
	ttl      time.Duration
	now      func() time.Time
	bus      *events.Bus
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu        sync.RWMutex
	cached    Thresholds
	fetchedAt time.Time
}

// NewThresholdSource builds a source over the pool diamond address.
// ttl <= 0 selects the default. Bus and metrics may be nil.
func NewThresholdSource(reader chain.Reader, poolAddr common.Address, ttl time.Duration, bus *events.Bus, mc *metrics.Collector, logger *zap.Logger) *ThresholdSource {
	if ttl <= 0 {
		ttl = defaultThresholdTTL
	}
	return &ThresholdSource{
		chain:    reader,
		poolAddr: poolAddr,
		ttl:      ttl,
		now:      time.Now,
		bus:      bus,
		metrics:  mc,
		logger:   logger.Named("thresholds"),
	}
}

// GetThresholds returns the cached pair when fresh, otherwise refreshes
// both slots in one batched request. Concurrent misses coalesce on the
// write lock, so the chain sees a single refresh.
func (s *ThresholdSource) GetThresholds(ctx context.Context) (Thresholds, error) {
	s.mu.RLock()
	if s.fresh() {
		t := s.cached
		s.mu.RUnlock()
		s.metrics.RecordCacheHit("thresholds")
		return t, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fresh() {
		s.metrics.RecordCacheHit("thresholds")
		return s.cached, nil
	}
	s.metrics.RecordCacheMiss("thresholds")

	t, err := s.fetch(ctx)
	if err != nil {
		return Thresholds{}, err
	}
	s.cached = t
	s.fetchedAt = s.now()
	s.publish(t)
	return t, nil
}

func (s *ThresholdSource) publish(t Thresholds) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(events.ThresholdsRefreshedEvent{
		BaseEvent:       events.BaseEvent{EventType: events.ThresholdsRefreshed, EventTime: time.Now()},
		MintThreshold:   t.Mint,
		RedeemThreshold: t.Redeem,
	})
}

// Invalidate drops the cached pair so the next read refetches.
func (s *ThresholdSource) Invalidate() {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

func (s *ThresholdSource) fresh() bool {
	return !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) < s.ttl
}

func (s *ThresholdSource) fetch(ctx context.Context) (Thresholds, error) {
	results := make([]string, 2)
	batch := []rpc.BatchElem{
		{
			Method: "eth_getStorageAt",
			Args:   []interface{}{s.poolAddr, thresholdSlot(mintThresholdSlotOffset), chain.BlockArg(nil)},
			Result: &results[0],
		},
		{
			Method: "eth_getStorageAt",
			Args:   []interface{}{s.poolAddr, thresholdSlot(redeemThresholdSlotOffset), chain.BlockArg(nil)},
			Result: &results[1],
		},
	}
	if err := s.chain.BatchCall(ctx, batch); err != nil {
		return Thresholds{}, NewChainReadError("eth_getStorageAt", err)
	}
	for i := range batch {
		if batch[i].Error != nil {
			return Thresholds{}, NewChainReadError("eth_getStorageAt", batch[i].Error)
		}
	}

	mint, err := parseThreshold("mint", results[0])
	if err != nil {
		return Thresholds{}, err
	}
	redeem, err := parseThreshold("redeem", results[1])
	if err != nil {
		return Thresholds{}, err
	}

	s.logger.Debug("refreshed thresholds",
		zap.Uint64("mint", mint),
		zap.Uint64("redeem", redeem))
	return Thresholds{Mint: mint, Redeem: redeem}, nil
}

func parseThreshold(kind, raw string) (uint64, error) {
	v := common.HexToHash(raw).Big()
	if !v.IsUint64() || v.Uint64() < minSaneThreshold || v.Uint64() > maxSaneThreshold {
		return 0, fmt.Errorf("%w: %s threshold %s out of [%d, %d]",
			ErrCorruptThresholdData, kind, v.String(), uint64(minSaneThreshold), uint64(maxSaneThreshold))
	}
	return v.Uint64(), nil
}
