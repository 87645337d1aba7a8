// =================================
// File: internal/history/events.go
// =================================
package history

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"uusd-router/internal/amm"
	"uusd-router/internal/chain"
	"uusd-router/internal/metrics"
	"uusd-router/internal/uusd"
)

// minSwapEvents is the smallest event count worth charting; below it
// the source falls through to the block sampler.
const minSwapEvents = 2

// ExchangeDecoder identifies and decodes the pool's exchange events.
type ExchangeDecoder interface {
	Address() common.Address
	ExchangeTopic() common.Hash
	UnpackExchange(lg types.Log) (*amm.TokenExchange, error)
}

var _ ExchangeDecoder = (*amm.PoolQuoter)(nil)

// SwapEventSource reconstructs the price series from executed swaps.
// Each TokenExchange log yields an implied price from its two legs;
// timestamps come from one multiplexed header lookup over the touched
// blocks. Preferred over block sampling because every point is a real
// trade, but a quiet pool yields too few points and the source steps
// aside.
type SwapEventSource struct {
	chain     chain.Reader
	pool      ExchangeDecoder
	dollarLeg int64
	refPrice  ReferencePriceFunc
	metrics   *metrics.Collector
	logger    *zap.Logger
}

var _ Strategy = (*SwapEventSource)(nil)

// NewSwapEventSource wires the event strategy. dollarLeg is the pool
// index of the dollar token. mc may be nil.
func NewSwapEventSource(reader chain.Reader, pool ExchangeDecoder, dollarLeg int64, refPrice ReferencePriceFunc, mc *metrics.Collector, logger *zap.Logger) *SwapEventSource {
	return &SwapEventSource{
		chain:     reader,
		pool:      pool,
		dollarLeg: dollarLeg,
		refPrice:  refPrice,
		metrics:   mc,
		logger:    logger.Named("swap-events"),
	}
}

func (s *SwapEventSource) Name() string { return "swap_events" }

func (s *SwapEventSource) Load(ctx context.Context, cfg Config) ([]PriceDataPoint, error) {
	start := time.Now()

	head, err := s.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, uusd.NewChainReadError("eth_getBlockByNumber", err)
	}
	headNum := head.Number.Uint64()
	window := blockWindow(cfg)
	from := uint64(0)
	if headNum > window {
		from = headNum - window
	}

	logs, err := s.chain.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(headNum),
		Addresses: []common.Address{s.pool.Address()},
		Topics:    [][]common.Hash{{s.pool.ExchangeTopic()}},
	})
	if err != nil {
		return nil, uusd.NewChainReadError("eth_getLogs", err)
	}
	if len(logs) < minSwapEvents {
		return nil, fmt.Errorf("%w: %d swap events in window", ErrInsufficientData, len(logs))
	}

	ref, err := s.refPrice(ctx)
	if err != nil {
		return nil, err
	}

	type rawPoint struct {
		block uint64
		price uint64
	}
	raw := make([]rawPoint, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ex, err := s.pool.UnpackExchange(lg)
		if err != nil {
			s.metrics.RecordSampleDropped("event_decode")
			s.logger.Warn("Dropping undecodable exchange log",
				zap.Uint64("block", lg.BlockNumber),
				zap.Error(err))
			continue
		}
		price, err := impliedFromExchange(ref, ex, s.dollarLeg)
		if err != nil {
			s.metrics.RecordSampleDropped("event_price")
			s.logger.Warn("Dropping unpriceable exchange log",
				zap.Uint64("block", lg.BlockNumber),
				zap.Error(err))
			continue
		}
		raw = append(raw, rawPoint{block: lg.BlockNumber, price: price})
	}
	if len(raw) < minSwapEvents {
		return nil, fmt.Errorf("%w: %d priceable swaps in window", ErrInsufficientData, len(raw))
	}

	// Thin to the requested density, newest point always kept.
	picked := raw
	if len(raw) > cfg.MaxDataPoints {
		stride := (len(raw) + cfg.MaxDataPoints - 1) / cfg.MaxDataPoints
		picked = make([]rawPoint, 0, cfg.MaxDataPoints)
		for i := len(raw) - 1; i >= 0; i -= stride {
			picked = append(picked, raw[i])
		}
		for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
			picked[i], picked[j] = picked[j], picked[i]
		}
	}

	// One multiplexed lookup resolves the touched block timestamps.
	blockIndex := make(map[uint64]int, len(picked))
	blocks := make([]uint64, 0, len(picked))
	for _, p := range picked {
		if _, ok := blockIndex[p.block]; !ok {
			blockIndex[p.block] = len(blocks)
			blocks = append(blocks, p.block)
		}
	}
	headers := make([]*types.Header, len(blocks))
	batch := make([]rpc.BatchElem, len(blocks))
	for i, bn := range blocks {
		batch[i] = rpc.BatchElem{
			Method: "eth_getBlockByNumber",
			Args:   []interface{}{chain.BlockArg(new(big.Int).SetUint64(bn)), false},
			Result: &headers[i],
		}
	}
	if err := s.chain.BatchCall(ctx, batch); err != nil {
		return nil, uusd.NewChainReadError("swap_history_batch", err)
	}

	points := make([]PriceDataPoint, 0, len(picked))
	for _, p := range picked {
		i := blockIndex[p.block]
		if reason := dropReason(batch[i], headers[i] == nil); reason != "" {
			s.metrics.RecordSampleDropped("header_" + reason)
			s.logger.Warn("Dropping history sample",
				zap.Uint64("block", p.block),
				zap.String("reason", "header_"+reason),
				zap.Error(batch[i].Error))
			continue
		}
		points = append(points, PriceDataPoint{
			Timestamp:   headers[i].Time,
			PriceUsd:    p.price,
			BlockNumber: p.block,
		})
	}

	s.logger.Debug("Swap event pass complete",
		zap.Int("logs", len(logs)),
		zap.Int("points", len(points)),
		zap.Uint64("from_block", from),
		zap.Uint64("head", headNum),
		zap.Duration("elapsed", time.Since(start)))
	return points, nil
}

// impliedFromExchange derives the dollar price from one executed swap:
// the reference price scaled by the collateral leg over the dollar
// leg. Works for both trade directions.
func impliedFromExchange(referencePriceUsd uint64, ex *amm.TokenExchange, dollarLeg int64) (uint64, error) {
	var dollar, collateral *big.Int
	switch {
	case ex.BoughtId.IsInt64() && ex.BoughtId.Int64() == dollarLeg:
		dollar, collateral = ex.TokensBought, ex.TokensSold
	case ex.SoldId.IsInt64() && ex.SoldId.Int64() == dollarLeg:
		dollar, collateral = ex.TokensSold, ex.TokensBought
	default:
		return 0, fmt.Errorf("%w: exchange legs %s/%s do not touch the dollar leg",
			amm.ErrQuoteFailed, ex.SoldId, ex.BoughtId)
	}
	if dollar.Sign() <= 0 || collateral.Sign() <= 0 {
		return 0, fmt.Errorf("%w: empty exchange amounts", amm.ErrQuoteFailed)
	}

	price := new(uint256.Int).SetUint64(referencePriceUsd)
	price.Mul(price, uint256.MustFromBig(collateral))
	price.Div(price, uint256.MustFromBig(dollar))
	if !price.IsUint64() {
		return 0, fmt.Errorf("%w: implied price out of range", amm.ErrQuoteFailed)
	}
	return price.Uint64(), nil
}
