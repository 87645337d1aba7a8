// ===============================
// File: internal/uusd/pricing.go
// ===============================
package uusd

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// QuoteReader is the chain surface a pricing calculation needs.
type QuoteReader interface {
	BatchFetchMintData(ctx context.Context, collateralIndex uint64, dollarAmount *uint256.Int) (*MintData, error)
	TwapOraclePrice(ctx context.Context) (uint64, error)
	CollateralRatio(ctx context.Context) (uint64, error)
	GovernancePriceUsd(ctx context.Context) (uint64, error)
	DollarInCollateral(ctx context.Context, collateralIndex uint64, dollarAmount *uint256.Int) (*uint256.Int, error)
}

// ThresholdGetter serves the mint/redeem TWAP gates.
type ThresholdGetter interface {
	GetThresholds(ctx context.Context) (Thresholds, error)
}

var (
	_ QuoteReader     = (*Reader)(nil)
	_ ThresholdGetter = (*ThresholdSource)(nil)
)

// PricingService assembles full mint and redeem quotes: chain state,
// fixed-point math and the allowed/disallowed gate in one result.
// Prices are read fresh on every call; only thresholds are cached,
// inside the ThresholdGetter.
type PricingService struct {
	reader     QuoteReader
	thresholds ThresholdGetter
	wellKnown  CollateralOption
	options    []CollateralOption
	logger     *zap.Logger
}

// NewPricingService wires a service over the given reader and
// threshold source. wellKnown is the collateral record served for its
// index without consulting the dynamic list, so quoting works before
// (or despite) the on-chain registry load. options is the dynamic
// list; it may be empty.
func NewPricingService(reader QuoteReader, thresholds ThresholdGetter, wellKnown CollateralOption, options []CollateralOption, logger *zap.Logger) *PricingService {
	return &PricingService{
		reader:     reader,
		thresholds: thresholds,
		wellKnown:  wellKnown,
		options:    options,
		logger:     logger.Named("pricing"),
	}
}

// CalculateMintOutput produces a full mint quote for the given dollar
// amount and collateral. The three chain inputs arrive in one batched
// read; oracle price and thresholds are fetched alongside. Minting is
// allowed when the TWAP price sits at or above the mint threshold.
func (s *PricingService) CalculateMintOutput(ctx context.Context, params MintQuoteParams) (*MintPriceResult, error) {
	if params.DollarAmount == nil || params.DollarAmount.IsZero() {
		return nil, fmt.Errorf("%w: dollar amount must be positive", ErrInvalidArgument)
	}
	collateral, err := s.resolveCollateral(params.CollateralIndex)
	if err != nil {
		return nil, err
	}

	data, err := s.reader.BatchFetchMintData(ctx, collateral.Index, params.DollarAmount)
	if err != nil {
		return nil, err
	}
	twap, err := s.reader.TwapOraclePrice(ctx)
	if err != nil {
		return nil, err
	}
	gates, err := s.thresholds.GetThresholds(ctx)
	if err != nil {
		return nil, err
	}

	result, err := CalculateMintAmounts(MintParams{
		DollarAmount:          params.DollarAmount,
		CollateralRatio:       data.CollateralRatio,
		GovernancePrice:       data.GovernancePrice,
		CollateralAtFullRatio: data.CollateralAmount,
		MintingFee:            collateral.MintingFee,
		ForceCollateralOnly:   params.ForceCollateralOnly,
	})
	if err != nil {
		return nil, err
	}

	out := &MintPriceResult{
		MintResult:       *result,
		Collateral:       collateral,
		CollateralRatio:  data.CollateralRatio,
		GovernancePrice:  data.GovernancePrice,
		TwapPrice:        twap,
		MintThreshold:    gates.Mint,
		IsMintingAllowed: twap >= gates.Mint,
	}
	s.logger.Debug("mint quote",
		zap.String("collateral", collateral.Symbol),
		zap.String("dollar_amount", params.DollarAmount.String()),
		zap.String("total_mint", out.TotalDollarMint.String()),
		zap.Bool("allowed", out.IsMintingAllowed))
	return out, nil
}

// CalculateRedeemOutput produces a full redeem quote. With
// skipGovernancePrice set the governance read is skipped and a neutral
// peg placeholder is substituted; the result is then flagged
// GovernancePriceAssumed and its governance leg must not be shown as a
// market quote. Redeeming is allowed when the TWAP price sits at or
// above the redeem threshold.
func (s *PricingService) CalculateRedeemOutput(ctx context.Context, params RedeemQuoteParams, skipGovernancePrice bool) (*RedeemPriceResult, error) {
	if params.DollarAmount == nil || params.DollarAmount.IsZero() {
		return nil, fmt.Errorf("%w: dollar amount must be positive", ErrInvalidArgument)
	}
	collateral, err := s.resolveCollateral(params.CollateralIndex)
	if err != nil {
		return nil, err
	}

	ratio, err := s.reader.CollateralRatio(ctx)
	if err != nil {
		return nil, err
	}
	twap, err := s.reader.TwapOraclePrice(ctx)
	if err != nil {
		return nil, err
	}
	gates, err := s.thresholds.GetThresholds(ctx)
	if err != nil {
		return nil, err
	}

	governancePrice := uint64(PegPrice)
	assumed := true
	if !skipGovernancePrice {
		governancePrice, err = s.reader.GovernancePriceUsd(ctx)
		if err != nil {
			return nil, err
		}
		assumed = false
	}

	// The pool converts the fee-adjusted amount; the fee itself never
	// reaches the collateral conversion.
	feeAdjusted := FeeAdjust(params.DollarAmount, ScaleFee(collateral.RedemptionFee))
	collateralQuote, err := s.reader.DollarInCollateral(ctx, collateral.Index, feeAdjusted)
	if err != nil {
		return nil, err
	}

	result, err := CalculateRedeemAmounts(RedeemParams{
		DollarAmount:             params.DollarAmount,
		CollateralRatio:          ratio,
		GovernancePrice:          governancePrice,
		CollateralForFeeAdjusted: collateralQuote,
		RedemptionFee:            collateral.RedemptionFee,
	})
	if err != nil {
		return nil, err
	}

	out := &RedeemPriceResult{
		RedeemResult:           *result,
		Collateral:             collateral,
		CollateralRatio:        ratio,
		GovernancePrice:        governancePrice,
		GovernancePriceAssumed: assumed,
		TwapPrice:              twap,
		RedeemThreshold:        gates.Redeem,
		IsRedeemingAllowed:     twap >= gates.Redeem,
	}
	s.logger.Debug("redeem quote",
		zap.String("collateral", collateral.Symbol),
		zap.String("dollar_amount", params.DollarAmount.String()),
		zap.String("collateral_redeemed", out.CollateralRedeemed.String()),
		zap.Bool("allowed", out.IsRedeemingAllowed),
		zap.Bool("governance_price_assumed", assumed))
	return out, nil
}

func (s *PricingService) resolveCollateral(index uint64) (CollateralOption, error) {
	if index == s.wellKnown.Index {
		return s.wellKnown, nil
	}
	for _, opt := range s.options {
		if opt.Index == index {
			return opt, nil
		}
	}
	return CollateralOption{}, fmt.Errorf("%w: unknown collateral index %d", ErrInvalidArgument, index)
}
