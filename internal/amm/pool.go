// ===========================
// File: internal/amm/pool.go
// ===========================
package amm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"uusd-router/internal/chain"
)

// Curve two-coin pool ABI (minimal)
const CurvePoolABI = `[
	{"stateMutability":"view","type":"function","name":"get_dy","inputs":[{"name":"i","type":"int128"},{"name":"j","type":"int128"},{"name":"dx","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"TokenExchange","inputs":[{"name":"buyer","type":"address","indexed":true},{"name":"sold_id","type":"int128","indexed":false},{"name":"tokens_sold","type":"uint256","indexed":false},{"name":"bought_id","type":"int128","indexed":false},{"name":"tokens_bought","type":"uint256","indexed":false}],"anonymous":false,"type":"event"}
]`

var (
	// ErrQuoteFailed marks a zero or malformed pool response.
	ErrQuoteFailed = errors.New("amm quote failed")
	// ErrInvalidAmount marks a nil or zero input amount.
	ErrInvalidAmount = errors.New("invalid input amount")
)

// IsQuoteFailedError reports whether err wraps ErrQuoteFailed.
func IsQuoteFailedError(err error) bool {
	return errors.Is(err, ErrQuoteFailed)
}

// oneUnit is the fixed probe amount for implied-price queries: one
// whole 18-decimal token of the reference leg.
var oneUnit = uint256.MustFromDecimal("1000000000000000000")

// TokenExchange is a decoded swap event from the pool.
type TokenExchange struct {
	Buyer        common.Address
	SoldId       *big.Int
	TokensSold   *big.Int
	BoughtId     *big.Int
	TokensBought *big.Int
}

// PoolQuoter reads deterministic swap quotes off a Curve-style
// two-coin pool. It never trades; every method is a view call.
type PoolQuoter struct {
	contract   *bind.BoundContract
	poolABI    abi.ABI
	addr       common.Address
	dollarLeg  int64
	counterLeg int64
	logger     *zap.Logger
}

// NewPoolQuoter binds the pool at addr. dollarLeg and counterLeg are
// the pool's coin indexes for the dollar token and the reference
// collateral respectively.
func NewPoolQuoter(reader chain.Reader, addr common.Address, dollarLeg, counterLeg int64, logger *zap.Logger) (*PoolQuoter, error) {
	poolABI, err := abi.JSON(strings.NewReader(CurvePoolABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool ABI: %w", err)
	}
	return &PoolQuoter{
		contract:   bind.NewBoundContract(addr, poolABI, reader, nil, nil),
		poolABI:    poolABI,
		addr:       addr,
		dollarLeg:  dollarLeg,
		counterLeg: counterLeg,
		logger:     logger.Named("amm"),
	}, nil
}

// Address returns the pool contract address.
func (q *PoolQuoter) Address() common.Address { return q.addr }

// Quote returns the pool's output amount for swapping dx from one leg
// into the other. A zero output for a positive input is an error; the
// pool never legitimately pays out nothing.
func (q *PoolQuoter) Quote(ctx context.Context, dx *uint256.Int, fromLeg, toLeg int64) (*uint256.Int, error) {
	if dx == nil || dx.IsZero() {
		return nil, ErrInvalidAmount
	}

	var out []interface{}
	err := q.contract.Call(&bind.CallOpts{Context: ctx}, &out, "get_dy",
		big.NewInt(fromLeg), big.NewInt(toLeg), dx.ToBig())
	if err != nil {
		q.logger.Debug("get_dy failed",
			zap.Int64("from", fromLeg),
			zap.Int64("to", toLeg),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}
	dy := out[0].(*big.Int)
	if dy.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero output for %s input", ErrQuoteFailed, dx.String())
	}
	return uint256.MustFromBig(dy), nil
}

// QuoteDollarOut quotes collateral into the dollar leg.
func (q *PoolQuoter) QuoteDollarOut(ctx context.Context, collateralIn *uint256.Int) (*uint256.Int, error) {
	return q.Quote(ctx, collateralIn, q.counterLeg, q.dollarLeg)
}

// QuoteCollateralOut quotes dollars into the collateral leg.
func (q *PoolQuoter) QuoteCollateralOut(ctx context.Context, dollarIn *uint256.Int) (*uint256.Int, error) {
	return q.Quote(ctx, dollarIn, q.dollarLeg, q.counterLeg)
}

// ImpliedUsdPrice derives the dollar token's USD price from the pool:
// one whole unit of the reference leg is quoted into the dollar leg
// and the cross price is referencePriceUsd * testAmount / received.
func (q *PoolQuoter) ImpliedUsdPrice(ctx context.Context, referencePriceUsd uint64) (uint64, error) {
	received, err := q.Quote(ctx, oneUnit, q.counterLeg, q.dollarLeg)
	if err != nil {
		return 0, err
	}
	return ImpliedFromQuote(referencePriceUsd, received)
}

// ImpliedFromQuote converts a one-unit probe quote into a USD-scaled
// price. Shared with callers that fetch the probe through a batched or
// block-pinned read.
func ImpliedFromQuote(referencePriceUsd uint64, received *uint256.Int) (uint64, error) {
	if received == nil || received.IsZero() {
		return 0, fmt.Errorf("%w: zero received amount", ErrQuoteFailed)
	}
	price := new(uint256.Int).SetUint64(referencePriceUsd)
	price.Mul(price, oneUnit)
	price.Div(price, received)
	if !price.IsUint64() {
		return 0, fmt.Errorf("%w: implied price out of range", ErrQuoteFailed)
	}
	return price.Uint64(), nil
}

// ProbeCall builds the raw call message for the one-unit implied-price
// probe, for callers that multiplex or pin their own eth_call reads.
func (q *PoolQuoter) ProbeCall() (ethereum.CallMsg, error) {
	input, err := q.poolABI.Pack("get_dy",
		big.NewInt(q.counterLeg), big.NewInt(q.dollarLeg), oneUnit.ToBig())
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("failed to pack get_dy: %w", err)
	}
	return ethereum.CallMsg{To: &q.addr, Data: input}, nil
}

// UnpackQuote decodes a raw get_dy return.
func (q *PoolQuoter) UnpackQuote(data []byte) (*uint256.Int, error) {
	vals, err := q.poolABI.Unpack("get_dy", data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrQuoteFailed)
	}
	return uint256.MustFromBig(vals[0].(*big.Int)), nil
}

// ExchangeTopic returns the TokenExchange event id for log filters.
func (q *PoolQuoter) ExchangeTopic() common.Hash {
	return q.poolABI.Events["TokenExchange"].ID
}

// UnpackExchange decodes a TokenExchange log.
func (q *PoolQuoter) UnpackExchange(lg types.Log) (*TokenExchange, error) {
	ev := new(TokenExchange)
	if err := q.contract.UnpackLog(ev, "TokenExchange", lg); err != nil {
		return nil, fmt.Errorf("failed to unpack TokenExchange: %w", err)
	}
	return ev, nil
}
