// internal/chain/client.go
package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"uusd-router/internal/metrics"
	"uusd-router/pkg/ethrpc"
)

// Client is a thin read adapter over the endpoint pool. Every method
// issues exactly one request against the next pooled endpoint; there is
// no retry here, failed reads surface to the caller.
type Client struct {
	pool    *ethrpc.Pool
	metrics *metrics.Collector
	logger  *zap.Logger
}

var _ Reader = (*Client)(nil)

// NewClient wraps a dialed endpoint pool. The metrics collector may be
// nil when metrics are disabled.
func NewClient(pool *ethrpc.Pool, mc *metrics.Collector, logger *zap.Logger) *Client {
	return &Client{
		pool:    pool,
		metrics: mc,
		logger:  logger.Named("chain"),
	}
}

func (c *Client) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	start := time.Now()
	code, err := c.pool.Get().ETH.CodeAt(ctx, contract, blockNumber)
	c.metrics.RecordRPC("eth_getCode", time.Since(start), err)
	if err != nil {
		c.logger.Debug("CodeAt error",
			zap.String("contract", contract.Hex()),
			zap.Error(err))
		return nil, err
	}
	return code, nil
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	start := time.Now()
	out, err := c.pool.Get().ETH.CallContract(ctx, msg, blockNumber)
	c.metrics.RecordRPC("eth_call", time.Since(start), err)
	if err != nil {
		c.logger.Debug("CallContract error",
			zap.Stringp("to", addrp(msg.To)),
			zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	start := time.Now()
	header, err := c.pool.Get().ETH.HeaderByNumber(ctx, number)
	c.metrics.RecordRPC("eth_getBlockByNumber", time.Since(start), err)
	if err != nil {
		c.logger.Debug("HeaderByNumber error", zap.Error(err))
		return nil, err
	}
	return header, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	start := time.Now()
	number, err := c.pool.Get().ETH.BlockNumber(ctx)
	c.metrics.RecordRPC("eth_blockNumber", time.Since(start), err)
	if err != nil {
		c.logger.Debug("BlockNumber error", zap.Error(err))
		return 0, err
	}
	return number, nil
}

func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	start := time.Now()
	logs, err := c.pool.Get().ETH.FilterLogs(ctx, q)
	c.metrics.RecordRPC("eth_getLogs", time.Since(start), err)
	if err != nil {
		c.logger.Debug("FilterLogs error", zap.Error(err))
		return nil, err
	}
	return logs, nil
}

// BatchCall sends the whole element slice as one JSON-RPC array
// request. Sub-call failures land on the individual elements; the
// returned error covers transport-level failure only.
func (c *Client) BatchCall(ctx context.Context, batch []rpc.BatchElem) error {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	err := c.pool.Get().RPC.BatchCallContext(ctx, batch)
	c.metrics.RecordRPC("batch", time.Since(start), err)
	c.metrics.RecordBatch("rpc", len(batch))
	if err != nil {
		c.logger.Debug("BatchCall error",
			zap.Int("size", len(batch)),
			zap.Error(err))
		return err
	}
	return nil
}

func addrp(a *common.Address) *string {
	if a == nil {
		return nil
	}
	s := a.Hex()
	return &s
}
