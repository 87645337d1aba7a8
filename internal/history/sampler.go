// ==================================
// File: internal/history/sampler.go
// ==================================
package history

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"uusd-router/internal/amm"
	"uusd-router/internal/chain"
	"uusd-router/internal/metrics"
	"uusd-router/internal/uusd"
)

// QuoteProber packs and decodes the pinned implied-price probe.
type QuoteProber interface {
	ProbeCall() (ethereum.CallMsg, error)
	UnpackQuote(data []byte) (*uint256.Int, error)
}

var _ QuoteProber = (*amm.PoolQuoter)(nil)

// BlockSampler reconstructs the price series by probing the pool at
// evenly spaced historical blocks. The whole pass is one multiplexed
// JSON-RPC request: a header lookup plus a pinned quote call per
// sample block. Sub-responses are correlated by id inside the rpc
// client; a failed or missing pair drops that sample only.
type BlockSampler struct {
	chain    chain.Reader
	prober   QuoteProber
	refPrice ReferencePriceFunc
	metrics  *metrics.Collector
	logger   *zap.Logger
}

var _ Strategy = (*BlockSampler)(nil)

// NewBlockSampler wires a sampler. mc may be nil.
func NewBlockSampler(reader chain.Reader, prober QuoteProber, refPrice ReferencePriceFunc, mc *metrics.Collector, logger *zap.Logger) *BlockSampler {
	return &BlockSampler{
		chain:    reader,
		prober:   prober,
		refPrice: refPrice,
		metrics:  mc,
		logger:   logger.Named("block-sampler"),
	}
}

func (s *BlockSampler) Name() string { return "block_sampler" }

func (s *BlockSampler) Load(ctx context.Context, cfg Config) ([]PriceDataPoint, error) {
	start := time.Now()

	head, err := s.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, uusd.NewChainReadError("eth_getBlockByNumber", err)
	}
	headNum := head.Number.Uint64()

	ref, err := s.refPrice(ctx)
	if err != nil {
		return nil, err
	}
	probe, err := s.prober.ProbeCall()
	if err != nil {
		return nil, err
	}

	step := blockWindow(cfg) / uint64(cfg.MaxDataPoints)
	if step == 0 {
		step = 1
	}
	samples := make([]uint64, 0, cfg.MaxDataPoints)
	for i := cfg.MaxDataPoints - 1; i >= 0; i-- {
		back := uint64(i) * step
		if back > headNum {
			continue
		}
		samples = append(samples, headNum-back)
	}

	headers := make([]*types.Header, len(samples))
	quotes := make([]hexutil.Bytes, len(samples))
	batch := make([]rpc.BatchElem, 0, 2*len(samples))
	for i, bn := range samples {
		tag := chain.BlockArg(new(big.Int).SetUint64(bn))
		batch = append(batch,
			rpc.BatchElem{
				Method: "eth_getBlockByNumber",
				Args:   []interface{}{tag, false},
				Result: &headers[i],
			},
			rpc.BatchElem{
				Method: "eth_call",
				Args:   []interface{}{chain.CallArg(probe), tag},
				Result: &quotes[i],
			},
		)
	}
	if err := s.chain.BatchCall(ctx, batch); err != nil {
		return nil, uusd.NewChainReadError("price_history_batch", err)
	}

	points := make([]PriceDataPoint, 0, len(samples))
	for i, bn := range samples {
		if reason := dropReason(batch[2*i], headers[i] == nil); reason != "" {
			s.drop(bn, "header_"+reason, batch[2*i].Error)
			continue
		}
		if reason := dropReason(batch[2*i+1], len(quotes[i]) == 0); reason != "" {
			s.drop(bn, "quote_"+reason, batch[2*i+1].Error)
			continue
		}
		dy, err := s.prober.UnpackQuote(quotes[i])
		if err != nil {
			s.drop(bn, "quote_decode", err)
			continue
		}
		price, err := amm.ImpliedFromQuote(ref, dy)
		if err != nil {
			s.drop(bn, "quote_price", err)
			continue
		}
		points = append(points, PriceDataPoint{
			Timestamp:   headers[i].Time,
			PriceUsd:    price,
			BlockNumber: bn,
		})
	}

	s.logger.Debug("Sampling pass complete",
		zap.Int("requested", cfg.MaxDataPoints),
		zap.Int("points", len(points)),
		zap.Int("dropped", len(samples)-len(points)),
		zap.Uint64("head", headNum),
		zap.Duration("elapsed", time.Since(start)))
	return points, nil
}

func (s *BlockSampler) drop(block uint64, reason string, err error) {
	s.metrics.RecordSampleDropped(reason)
	s.logger.Warn("Dropping history sample",
		zap.Uint64("block", block),
		zap.String("reason", reason),
		zap.Error(err))
}

// dropReason classifies one batch sub-response. empty flags a decoded
// result that came back vacant despite a nil error.
func dropReason(elem rpc.BatchElem, empty bool) string {
	switch {
	case errors.Is(elem.Error, rpc.ErrMissingBatchResponse), errors.Is(elem.Error, rpc.ErrNoResult):
		return "missing"
	case elem.Error != nil:
		return "error"
	case empty:
		return "missing"
	default:
		return ""
	}
}
