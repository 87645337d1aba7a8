// ==============================
// File: internal/uusd/reader.go
// ==============================
package uusd

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"uusd-router/internal/chain"
)

const defaultRequestTimeout = 15 * time.Second

// Reader answers read-only queries against the dollar pool and TWAP
// oracle facets of the protocol diamond. Results are returned raw;
// interpretation (regimes, gating) belongs to the pricing layer.
type Reader struct {
	chain    chain.Reader
	pool     *bind.BoundContract
	twap     *bind.BoundContract
	poolABI  abi.ABI
	poolAddr common.Address
	dollar   common.Address
	timeout  time.Duration
	logger   *zap.Logger
}

// collateralInformationResult matches the pool facet's
// CollateralInformation tuple layout field for field.
type collateralInformationResult struct {
	Index                                 *big.Int
	Symbol                                string
	CollateralAddress                     common.Address
	CollateralPriceFeedAddress            common.Address
	CollateralPriceFeedStalenessThreshold *big.Int
	IsEnabled                             bool
	MissingDecimals                       *big.Int
	Price                                 *big.Int
	PoolCeiling                           *big.Int
	IsMintPaused                          bool
	IsRedeemPaused                        bool
	IsBorrowPaused                        bool
	MintingFee                            *big.Int
	RedemptionFee                         *big.Int
}

// NewReader binds the pool and TWAP oracle facets over the given chain
// reader. dollarToken is the token consulted on the TWAP oracle.
// timeout bounds every read; zero selects the default.
func NewReader(reader chain.Reader, poolAddr, twapAddr, dollarToken common.Address, timeout time.Duration, logger *zap.Logger) (*Reader, error) {
	poolABI, err := abi.JSON(strings.NewReader(PoolFacetABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool facet ABI: %w", err)
	}
	twapABI, err := abi.JSON(strings.NewReader(TwapOracleABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse TWAP oracle ABI: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Reader{
		chain:    reader,
		pool:     bind.NewBoundContract(poolAddr, poolABI, reader, nil, nil),
		twap:     bind.NewBoundContract(twapAddr, twapABI, reader, nil, nil),
		poolABI:  poolABI,
		poolAddr: poolAddr,
		dollar:   dollarToken,
		timeout:  timeout,
		logger:   logger.Named("uusd-reader"),
	}, nil
}

// CollateralRatio returns the pool's collateral ratio, USD-scaled.
func (r *Reader) CollateralRatio(ctx context.Context) (uint64, error) {
	v, err := r.callUint(ctx, "collateralRatio")
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// GovernancePriceUsd returns the governance token USD price, USD-scaled.
func (r *Reader) GovernancePriceUsd(ctx context.Context) (uint64, error) {
	v, err := r.callUint(ctx, "getGovernancePriceUsd")
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// DollarPriceUsd returns the dollar token's spot USD price, USD-scaled.
// Display only; mint/redeem gating uses TwapOraclePrice.
func (r *Reader) DollarPriceUsd(ctx context.Context) (uint64, error) {
	v, err := r.callUint(ctx, "getDollarPriceUsd")
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// TwapOraclePrice returns the time-weighted dollar price used for
// mint/redeem gating, USD-scaled.
func (r *Reader) TwapOraclePrice(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []interface{}
	if err := r.twap.Call(&bind.CallOpts{Context: ctx}, &out, "consult", r.dollar); err != nil {
		r.logger.Debug("TWAP consult failed",
			zap.String("op_id", uuid.New().String()),
			zap.Error(err))
		return 0, NewChainReadError("consult", err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

// DollarInCollateral quotes how much collateral the pool pays out for
// dollarAmount at the current collateral price.
func (r *Reader) DollarInCollateral(ctx context.Context, collateralIndex uint64, dollarAmount *uint256.Int) (*uint256.Int, error) {
	if dollarAmount == nil {
		return nil, fmt.Errorf("%w: nil dollar amount", ErrInvalidArgument)
	}
	v, err := r.callUint(ctx, "getDollarInCollateral",
		new(big.Int).SetUint64(collateralIndex), dollarAmount.ToBig())
	if err != nil {
		return nil, err
	}
	return uint256.MustFromBig(v), nil
}

// AllCollaterals lists the pool's registered collateral token addresses.
func (r *Reader) AllCollaterals(ctx context.Context) ([]common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []interface{}
	if err := r.pool.Call(&bind.CallOpts{Context: ctx}, &out, "allCollaterals"); err != nil {
		r.logger.Debug("pool facet call failed",
			zap.String("op_id", uuid.New().String()),
			zap.String("method", "allCollaterals"),
			zap.Error(err))
		return nil, NewChainReadError("allCollaterals", err)
	}
	return out[0].([]common.Address), nil
}

// CollateralInformation fetches the pool's registry entry for one
// collateral token. Its Price field is the reference USD price used
// when deriving implied AMM prices.
func (r *Reader) CollateralInformation(ctx context.Context, collateralAddr common.Address) (*CollateralInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []interface{}
	if err := r.pool.Call(&bind.CallOpts{Context: ctx}, &out, "collateralInformation", collateralAddr); err != nil {
		r.logger.Debug("pool facet call failed",
			zap.String("op_id", uuid.New().String()),
			zap.String("method", "collateralInformation"),
			zap.String("collateral", collateralAddr.Hex()),
			zap.Error(err))
		return nil, NewChainReadError("collateralInformation", err)
	}
	raw := *abi.ConvertType(out[0], new(collateralInformationResult)).(*collateralInformationResult)
	return &CollateralInfo{
		Index:           raw.Index.Uint64(),
		Symbol:          raw.Symbol,
		Address:         raw.CollateralAddress,
		PriceFeed:       raw.CollateralPriceFeedAddress,
		IsEnabled:       raw.IsEnabled,
		MissingDecimals: uint8(raw.MissingDecimals.Uint64()),
		Price:           raw.Price.Uint64(),
		IsMintPaused:    raw.IsMintPaused,
		IsRedeemPaused:  raw.IsRedeemPaused,
	}, nil
}

// BatchFetchMintData gathers the three chain values a mint quote
// depends on in one multiplexed RPC round trip: the collateral ratio,
// the governance price and the full-ratio collateral quote.
func (r *Reader) BatchFetchMintData(ctx context.Context, collateralIndex uint64, dollarAmount *uint256.Int) (*MintData, error) {
	if dollarAmount == nil {
		return nil, fmt.Errorf("%w: nil dollar amount", ErrInvalidArgument)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opID := uuid.New().String()
	start := time.Now()

	ratioInput, err := r.poolABI.Pack("collateralRatio")
	if err != nil {
		return nil, fmt.Errorf("failed to pack collateralRatio: %w", err)
	}
	govInput, err := r.poolABI.Pack("getGovernancePriceUsd")
	if err != nil {
		return nil, fmt.Errorf("failed to pack getGovernancePriceUsd: %w", err)
	}
	quoteInput, err := r.poolABI.Pack("getDollarInCollateral",
		new(big.Int).SetUint64(collateralIndex), dollarAmount.ToBig())
	if err != nil {
		return nil, fmt.Errorf("failed to pack getDollarInCollateral: %w", err)
	}

	results := make([]hexutil.Bytes, 3)
	batch := []rpc.BatchElem{
		{Method: "eth_call", Args: []interface{}{r.callArg(ratioInput), chain.BlockArg(nil)}, Result: &results[0]},
		{Method: "eth_call", Args: []interface{}{r.callArg(govInput), chain.BlockArg(nil)}, Result: &results[1]},
		{Method: "eth_call", Args: []interface{}{r.callArg(quoteInput), chain.BlockArg(nil)}, Result: &results[2]},
	}
	if err := r.chain.BatchCall(ctx, batch); err != nil {
		r.logger.Debug("mint data batch failed",
			zap.String("op_id", opID),
			zap.Error(err))
		return nil, NewChainReadError("batchFetchMintData", err)
	}
	for i, method := range []string{"collateralRatio", "getGovernancePriceUsd", "getDollarInCollateral"} {
		if batch[i].Error != nil {
			r.logger.Debug("mint data sub-call failed",
				zap.String("op_id", opID),
				zap.String("method", method),
				zap.Error(batch[i].Error))
			return nil, NewChainReadError(method, batch[i].Error)
		}
	}

	ratio, err := r.unpackUint("collateralRatio", results[0])
	if err != nil {
		return nil, err
	}
	gov, err := r.unpackUint("getGovernancePriceUsd", results[1])
	if err != nil {
		return nil, err
	}
	quote, err := r.unpackUint("getDollarInCollateral", results[2])
	if err != nil {
		return nil, err
	}

	r.logger.Debug("fetched mint data",
		zap.String("op_id", opID),
		zap.Uint64("collateral_ratio", ratio.Uint64()),
		zap.Uint64("governance_price", gov.Uint64()),
		zap.String("collateral_quote", quote.String()),
		zap.Duration("elapsed", time.Since(start)))

	return &MintData{
		CollateralRatio:  ratio.Uint64(),
		GovernancePrice:  gov.Uint64(),
		CollateralAmount: uint256.MustFromBig(quote),
	}, nil
}

func (r *Reader) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []interface{}
	if err := r.pool.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		r.logger.Debug("pool facet call failed",
			zap.String("op_id", uuid.New().String()),
			zap.String("method", method),
			zap.Error(err))
		return nil, NewChainReadError(method, err)
	}
	if len(out) == 0 {
		return nil, NewChainReadError(method, fmt.Errorf("empty result"))
	}
	return out[0].(*big.Int), nil
}

func (r *Reader) callArg(input []byte) interface{} {
	return chain.CallArg(ethereum.CallMsg{To: &r.poolAddr, Data: input})
}

func (r *Reader) unpackUint(method string, data hexutil.Bytes) (*big.Int, error) {
	vals, err := r.poolABI.Unpack(method, data)
	if err != nil {
		return nil, NewChainReadError(method, err)
	}
	if len(vals) == 0 {
		return nil, NewChainReadError(method, fmt.Errorf("empty result"))
	}
	return vals[0].(*big.Int), nil
}
