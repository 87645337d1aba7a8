package uusd

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u256(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}

const (
	hundredDollars = "100000000000000000000" // 100e18
)

func TestCalculateMintAmountsFullCollateral(t *testing.T) {
	// 100% collateral, zero fee: output equals input, no governance leg.
	res, err := CalculateMintAmounts(MintParams{
		DollarAmount:          u256(hundredDollars),
		CollateralRatio:       PricePrecision,
		GovernancePrice:       1_000_000,
		CollateralAtFullRatio: u256("99500000000000000000"),
		MintingFee:            0,
	})
	require.NoError(t, err)

	assert.Equal(t, u256(hundredDollars), res.TotalDollarMint)
	assert.True(t, res.GovernanceNeeded.IsZero())
	assert.Equal(t, u256("99500000000000000000"), res.CollateralNeeded)
}

func TestCalculateMintAmountsFullGovernance(t *testing.T) {
	// 100% governance at $0.50: 100 dollars need 200 governance tokens,
	// and the 5% supporter bonus lifts the mint to 105 dollars.
	res, err := CalculateMintAmounts(MintParams{
		DollarAmount:          u256(hundredDollars),
		CollateralRatio:       0,
		GovernancePrice:       500_000,
		CollateralAtFullRatio: new(uint256.Int),
		MintingFee:            0,
	})
	require.NoError(t, err)

	assert.Equal(t, u256("200000000000000000000"), res.GovernanceNeeded)
	assert.True(t, res.CollateralNeeded.IsZero())
	assert.Equal(t, u256("105000000000000000000"), res.TotalDollarMint)
}

func TestCalculateMintAmountsRegimes(t *testing.T) {
	full := u256("100000000000000000000")

	tests := []struct {
		name           string
		ratio          uint64
		force          bool
		wantCollateral string
		wantGovernance string
		wantTotal      string
	}{
		{
			name:           "mixed 60/40 at $0.25 governance",
			ratio:          600_000,
			wantCollateral: "60000000000000000000",  // 60% of the full-ratio quote
			wantGovernance: "160000000000000000000", // 40 dollars / $0.25
			wantTotal:      "105000000000000000000", // bonus applies, fee 0
		},
		{
			name:           "force collateral only ignores ratio",
			ratio:          600_000,
			force:          true,
			wantCollateral: "100000000000000000000",
			wantGovernance: "0",
			wantTotal:      "100000000000000000000",
		},
		{
			name:           "ratio above precision treated as full collateral",
			ratio:          1_200_000,
			wantCollateral: "100000000000000000000",
			wantGovernance: "0",
			wantTotal:      "100000000000000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := CalculateMintAmounts(MintParams{
				DollarAmount:          u256(hundredDollars),
				CollateralRatio:       tt.ratio,
				GovernancePrice:       250_000,
				CollateralAtFullRatio: full,
				MintingFee:            0,
				ForceCollateralOnly:   tt.force,
			})
			require.NoError(t, err)

			assert.Equal(t, u256(tt.wantCollateral), res.CollateralNeeded)
			assert.Equal(t, u256(tt.wantGovernance), res.GovernanceNeeded)
			assert.Equal(t, u256(tt.wantTotal), res.TotalDollarMint)
		})
	}
}

func TestMintFeeAppliedBeforeBonus(t *testing.T) {
	// A one-unit fee on an amount that floors differently depending on
	// operation order. Documented order: fee first, bonus second.
	amount := u256("1000001")
	fee := 0.000001

	res, err := CalculateMintAmounts(MintParams{
		DollarAmount:          amount,
		CollateralRatio:       500_000,
		GovernancePrice:       1_000_000,
		CollateralAtFullRatio: u256("1000001"),
		MintingFee:            fee,
	})
	require.NoError(t, err)
	require.False(t, res.GovernanceNeeded.IsZero(), "mixed mode must use the governance leg")

	documented := ApplySupporterBonus(FeeAdjust(amount, ScaleFee(fee)))
	assert.Equal(t, documented, res.TotalDollarMint)
	assert.Equal(t, u256("1049998"), res.TotalDollarMint)

	reversed := FeeAdjust(ApplySupporterBonus(amount), ScaleFee(fee))
	assert.Equal(t, u256("1049999"), reversed)
	assert.Equal(t, 1, reversed.Cmp(res.TotalDollarMint), "bonus-first ordering must yield a larger value")
}

func TestMintRegimeBoundaryContinuity(t *testing.T) {
	full := u256(hundredDollars)
	mk := func(ratio uint64) *MintResult {
		res, err := CalculateMintAmounts(MintParams{
			DollarAmount:          u256(hundredDollars),
			CollateralRatio:       ratio,
			GovernancePrice:       1_000_000,
			CollateralAtFullRatio: full,
			MintingFee:            0,
		})
		require.NoError(t, err)
		return res
	}

	atFull := mk(PricePrecision)
	below := mk(PricePrecision - 1)

	// The only jump across the boundary is the bonus term itself.
	assert.Equal(t, ApplySupporterBonus(atFull.TotalDollarMint), below.TotalDollarMint)

	// Governance participation transitions from zero to near-zero.
	assert.True(t, atFull.GovernanceNeeded.IsZero())
	assert.False(t, below.GovernanceNeeded.IsZero())
	assert.True(t, below.GovernanceNeeded.Lt(u256("1000000000000000")),
		"one millionth of the amount at most: %s", below.GovernanceNeeded)
}

func TestMintRoundTripValue(t *testing.T) {
	// Converting both legs back to USD at the supplied prices must
	// reproduce the dollar amount within integer rounding.
	dollar := u256("123456789012345678901")
	fullQuote := u256("98765432109876543210")
	govPrice := uint64(777_777)

	res, err := CalculateMintAmounts(MintParams{
		DollarAmount:          dollar,
		CollateralRatio:       714_285,
		GovernancePrice:       govPrice,
		CollateralAtFullRatio: fullQuote,
		MintingFee:            0,
	})
	require.NoError(t, err)

	collateralUsd := mulDiv(res.CollateralNeeded, dollar, fullQuote)
	governanceUsd := mulDiv(res.GovernanceNeeded, uint256.NewInt(govPrice), precision)
	sum := new(uint256.Int).Add(collateralUsd, governanceUsd)

	diff := new(uint256.Int)
	if sum.Lt(dollar) {
		diff.Sub(dollar, sum)
	} else {
		diff.Sub(sum, dollar)
	}
	assert.True(t, diff.LtUint64(8), "round-trip drift %s exceeds rounding bound", diff)
}

func TestCalculateRedeemAmounts(t *testing.T) {
	quote := u256("99800000000000000000")

	tests := []struct {
		name           string
		ratio          uint64
		govPrice       uint64
		fee            float64
		wantCollateral string
		wantGovernance string
	}{
		{
			name:           "full collateral no bonus",
			ratio:          PricePrecision,
			govPrice:       1_000_000,
			fee:            0.002,
			wantCollateral: "99800000000000000000",
			wantGovernance: "0",
		},
		{
			name:           "full governance with bonus at $0.50",
			ratio:          0,
			govPrice:       500_000,
			fee:            0,
			wantCollateral: "0",
			wantGovernance: "210000000000000000000", // 105 dollars / $0.50
		},
		{
			name:           "mixed 50/50 at $1.00",
			ratio:          500_000,
			govPrice:       1_000_000,
			fee:            0,
			wantCollateral: "49900000000000000000", // half the supplied quote
			wantGovernance: "52500000000000000000", // bonused half
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := CalculateRedeemAmounts(RedeemParams{
				DollarAmount:             u256(hundredDollars),
				CollateralRatio:          tt.ratio,
				GovernancePrice:          tt.govPrice,
				CollateralForFeeAdjusted: quote,
				RedemptionFee:            tt.fee,
			})
			require.NoError(t, err)

			assert.Equal(t, u256(tt.wantCollateral), res.CollateralRedeemed)
			assert.Equal(t, u256(tt.wantGovernance), res.GovernanceRedeemed)
		})
	}
}

func TestMathErrorConditions(t *testing.T) {
	amount := u256(hundredDollars)

	t.Run("zero governance price fails governance modes", func(t *testing.T) {
		_, err := CalculateMintAmounts(MintParams{
			DollarAmount:          amount,
			CollateralRatio:       0,
			GovernancePrice:       0,
			CollateralAtFullRatio: amount,
		})
		assert.ErrorIs(t, err, ErrInvalidPriceData)

		_, err = CalculateRedeemAmounts(RedeemParams{
			DollarAmount:             amount,
			CollateralRatio:          400_000,
			GovernancePrice:          0,
			CollateralForFeeAdjusted: amount,
		})
		assert.ErrorIs(t, err, ErrInvalidPriceData)
	})

	t.Run("zero governance price fine for full collateral", func(t *testing.T) {
		_, err := CalculateMintAmounts(MintParams{
			DollarAmount:          amount,
			CollateralRatio:       PricePrecision,
			GovernancePrice:       0,
			CollateralAtFullRatio: amount,
		})
		assert.NoError(t, err)
	})

	t.Run("nil amounts rejected", func(t *testing.T) {
		_, err := CalculateMintAmounts(MintParams{CollateralAtFullRatio: amount})
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = CalculateRedeemAmounts(RedeemParams{DollarAmount: amount})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("fee outside unit range rejected", func(t *testing.T) {
		_, err := CalculateMintAmounts(MintParams{
			DollarAmount:          amount,
			CollateralRatio:       PricePrecision,
			CollateralAtFullRatio: amount,
			MintingFee:            1.5,
		})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestScaleHelpers(t *testing.T) {
	assert.Equal(t, uint64(1000), ScaleFee(0.001))
	assert.Equal(t, uint64(2), ScaleFee(0.0000015))
	assert.Equal(t, uint64(0), ScaleFee(0))

	six := u256("123000000") // 123 units at 6 decimals short of 18
	assert.Equal(t, u256("123000000000000000000"), ToStandardUnits(six, 12))
	assert.Equal(t, six, ToTokenUnits(u256("123000000000000000000"), 12))
	assert.Equal(t, six, ToTokenUnits(six, 0))
}
