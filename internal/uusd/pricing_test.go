// ====================================
// File: internal/uusd/pricing_test.go
// ====================================
package uusd

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubQuoteReader struct {
	mintData        *MintData
	mintDataErr     error
	twap            uint64
	twapErr         error
	ratio           uint64
	ratioErr        error
	governancePrice uint64
	governanceErr   error
	governanceReads int
	collateralQuote *uint256.Int
	quoteErr        error
	lastQuoteAmount *uint256.Int
}

var _ QuoteReader = (*stubQuoteReader)(nil)

func (s *stubQuoteReader) BatchFetchMintData(context.Context, uint64, *uint256.Int) (*MintData, error) {
	return s.mintData, s.mintDataErr
}

func (s *stubQuoteReader) TwapOraclePrice(context.Context) (uint64, error) {
	return s.twap, s.twapErr
}

func (s *stubQuoteReader) CollateralRatio(context.Context) (uint64, error) {
	return s.ratio, s.ratioErr
}

func (s *stubQuoteReader) GovernancePriceUsd(context.Context) (uint64, error) {
	s.governanceReads++
	return s.governancePrice, s.governanceErr
}

func (s *stubQuoteReader) DollarInCollateral(_ context.Context, _ uint64, dollarAmount *uint256.Int) (*uint256.Int, error) {
	s.lastQuoteAmount = dollarAmount.Clone()
	return s.collateralQuote, s.quoteErr
}

type stubThresholds struct {
	thresholds Thresholds
	err        error
}

var _ ThresholdGetter = (*stubThresholds)(nil)

func (s *stubThresholds) GetThresholds(context.Context) (Thresholds, error) {
	return s.thresholds, s.err
}

func newPricingFixture(reader *stubQuoteReader, gates *stubThresholds) *PricingService {
	return NewPricingService(reader, gates, DefaultCollateral(), nil, zap.NewNop())
}

func TestCalculateMintOutput(t *testing.T) {
	reader := &stubQuoteReader{
		mintData: &MintData{
			CollateralRatio:  1_000_000,
			GovernancePrice:  9_500_000,
			CollateralAmount: u256(hundredDollars),
		},
		twap: 1_005_000,
	}
	gates := &stubThresholds{thresholds: Thresholds{Mint: 1_001_000, Redeem: 990_000}}
	svc := newPricingFixture(reader, gates)

	out, err := svc.CalculateMintOutput(context.Background(), MintQuoteParams{
		DollarAmount:    u256(hundredDollars),
		CollateralIndex: 0,
	})
	require.NoError(t, err)

	// Full collateral at a 0.1% fee, no governance leg so no bonus.
	assert.Equal(t, u256("99900000000000000000"), out.TotalDollarMint)
	assert.Equal(t, u256(hundredDollars), out.CollateralNeeded)
	assert.True(t, out.GovernanceNeeded.IsZero())
	assert.Equal(t, "LUSD", out.Collateral.Symbol)
	assert.Equal(t, uint64(1_005_000), out.TwapPrice)
	assert.Equal(t, uint64(1_001_000), out.MintThreshold)
	assert.True(t, out.IsMintingAllowed)
}

func TestMintGateComparison(t *testing.T) {
	tests := []struct {
		name    string
		twap    uint64
		allowed bool
	}{
		{"above threshold", 1_002_000, true},
		{"exactly at threshold", 1_001_000, true},
		{"below threshold", 1_000_999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &stubQuoteReader{
				mintData: &MintData{
					CollateralRatio:  1_000_000,
					GovernancePrice:  9_500_000,
					CollateralAmount: u256(hundredDollars),
				},
				twap: tt.twap,
			}
			gates := &stubThresholds{thresholds: Thresholds{Mint: 1_001_000, Redeem: 990_000}}
			svc := newPricingFixture(reader, gates)

			out, err := svc.CalculateMintOutput(context.Background(), MintQuoteParams{
				DollarAmount:    u256(hundredDollars),
				CollateralIndex: 0,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, out.IsMintingAllowed)
			// A closed gate still returns the computed quote.
			assert.False(t, out.TotalDollarMint.IsZero())
		})
	}
}

func TestCalculateMintOutputErrors(t *testing.T) {
	validData := &MintData{
		CollateralRatio:  1_000_000,
		GovernancePrice:  9_500_000,
		CollateralAmount: u256(hundredDollars),
	}

	t.Run("nil amount", func(t *testing.T) {
		svc := newPricingFixture(&stubQuoteReader{mintData: validData}, &stubThresholds{})
		_, err := svc.CalculateMintOutput(context.Background(), MintQuoteParams{})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("unknown collateral index", func(t *testing.T) {
		svc := newPricingFixture(&stubQuoteReader{mintData: validData}, &stubThresholds{})
		_, err := svc.CalculateMintOutput(context.Background(), MintQuoteParams{
			DollarAmount:    u256(hundredDollars),
			CollateralIndex: 7,
		})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("batch read failure propagates", func(t *testing.T) {
		reader := &stubQuoteReader{mintDataErr: NewChainReadError("collateralRatio", errors.New("boom"))}
		svc := newPricingFixture(reader, &stubThresholds{})
		_, err := svc.CalculateMintOutput(context.Background(), MintQuoteParams{
			DollarAmount: u256(hundredDollars),
		})
		assert.True(t, IsChainReadError(err))
	})

	t.Run("corrupt thresholds propagate", func(t *testing.T) {
		reader := &stubQuoteReader{mintData: validData, twap: 1_000_000}
		gates := &stubThresholds{err: ErrCorruptThresholdData}
		svc := newPricingFixture(reader, gates)
		_, err := svc.CalculateMintOutput(context.Background(), MintQuoteParams{
			DollarAmount: u256(hundredDollars),
		})
		assert.ErrorIs(t, err, ErrCorruptThresholdData)
	})

	t.Run("oracle failure fails the quote", func(t *testing.T) {
		reader := &stubQuoteReader{mintData: validData, twapErr: NewChainReadError("consult", errors.New("boom"))}
		svc := newPricingFixture(reader, &stubThresholds{})
		_, err := svc.CalculateMintOutput(context.Background(), MintQuoteParams{
			DollarAmount: u256(hundredDollars),
		})
		assert.True(t, IsChainReadError(err))
	})
}

func TestCalculateRedeemOutputSkipGovernance(t *testing.T) {
	reader := &stubQuoteReader{
		ratio:           500_000,
		twap:            995_000,
		governancePrice: 2_000_000,
		collateralQuote: u256("99800000000000000000"),
	}
	gates := &stubThresholds{thresholds: Thresholds{Mint: 1_001_000, Redeem: 990_000}}
	svc := newPricingFixture(reader, gates)

	out, err := svc.CalculateRedeemOutput(context.Background(), RedeemQuoteParams{
		DollarAmount: u256(hundredDollars),
	}, true)
	require.NoError(t, err)

	// Governance price never read; the neutral peg placeholder is
	// substituted and flagged.
	assert.Equal(t, 0, reader.governanceReads)
	assert.True(t, out.GovernancePriceAssumed)
	assert.Equal(t, uint64(PegPrice), out.GovernancePrice)

	// 0.2% fee: the pool is quoted for the fee-adjusted 99.8 amount.
	assert.Equal(t, u256("99800000000000000000"), reader.lastQuoteAmount)
	assert.Equal(t, u256("49900000000000000000"), out.CollateralRedeemed)
	assert.Equal(t, u256("52395000000000000000"), out.GovernanceRedeemed)
	assert.True(t, out.IsRedeemingAllowed)
}

func TestCalculateRedeemOutputWithGovernancePrice(t *testing.T) {
	reader := &stubQuoteReader{
		ratio:           500_000,
		twap:            989_999,
		governancePrice: 2_000_000,
		collateralQuote: u256("99800000000000000000"),
	}
	gates := &stubThresholds{thresholds: Thresholds{Mint: 1_001_000, Redeem: 990_000}}
	svc := newPricingFixture(reader, gates)

	out, err := svc.CalculateRedeemOutput(context.Background(), RedeemQuoteParams{
		DollarAmount: u256(hundredDollars),
	}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, reader.governanceReads)
	assert.False(t, out.GovernancePriceAssumed)
	assert.Equal(t, uint64(2_000_000), out.GovernancePrice)
	assert.Equal(t, u256("49900000000000000000"), out.CollateralRedeemed)
	// Bonused 104.79 split at a $2 governance price.
	assert.Equal(t, u256("26197500000000000000"), out.GovernanceRedeemed)
	// TWAP one tick under the redeem threshold closes the gate.
	assert.False(t, out.IsRedeemingAllowed)
}

func TestCalculateRedeemOutputErrors(t *testing.T) {
	t.Run("zero amount", func(t *testing.T) {
		svc := newPricingFixture(&stubQuoteReader{}, &stubThresholds{})
		_, err := svc.CalculateRedeemOutput(context.Background(), RedeemQuoteParams{
			DollarAmount: uint256.NewInt(0),
		}, false)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("collateral quote failure propagates", func(t *testing.T) {
		reader := &stubQuoteReader{
			ratio:           500_000,
			twap:            995_000,
			governancePrice: 2_000_000,
			quoteErr:        NewChainReadError("getDollarInCollateral", errors.New("boom")),
		}
		svc := newPricingFixture(reader, &stubThresholds{thresholds: Thresholds{Mint: 1_001_000, Redeem: 990_000}})
		_, err := svc.CalculateRedeemOutput(context.Background(), RedeemQuoteParams{
			DollarAmount: u256(hundredDollars),
		}, false)
		assert.True(t, IsChainReadError(err))
	})
}

func TestResolveCollateral(t *testing.T) {
	aux := CollateralOption{Index: 1, Symbol: "DAI", MintingFee: 0.0005, RedemptionFee: 0.001}
	svc := NewPricingService(&stubQuoteReader{}, &stubThresholds{}, DefaultCollateral(), []CollateralOption{aux}, zap.NewNop())

	wellKnown, err := svc.resolveCollateral(0)
	require.NoError(t, err)
	assert.Equal(t, "LUSD", wellKnown.Symbol)

	fromList, err := svc.resolveCollateral(1)
	require.NoError(t, err)
	assert.Equal(t, "DAI", fromList.Symbol)

	_, err = svc.resolveCollateral(9)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
