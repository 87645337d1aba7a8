// =============================
// File: internal/uusd/math.go
// =============================
package uusd

import (
	"math"

	"github.com/holiman/uint256"
)

// Pure fixed-point mint/redeem arithmetic. Every division floors,
// matching the pool contract's own truncation, and the fee is always
// applied before the supporter bonus.

var precision = uint256.NewInt(PricePrecision)

// mulDiv computes x * y / den with flooring division. den must be
// non-zero; intermediate products fit 256 bits for all protocol scales.
func mulDiv(x, y, den *uint256.Int) *uint256.Int {
	z := new(uint256.Int).Mul(x, y)
	return z.Div(z, den)
}

// ScaleFee converts a fractional fee (0.001 == 0.1%) to USD-scaled
// units, rounding to the nearest unit.
func ScaleFee(fee float64) uint64 {
	return uint64(math.Round(fee * float64(PricePrecision)))
}

// FeeAdjust deducts a USD-scaled fee from amount:
// amount * (PRECISION - fee) / PRECISION.
func FeeAdjust(amount *uint256.Int, feeScaled uint64) *uint256.Int {
	return mulDiv(amount, uint256.NewInt(PricePrecision-feeScaled), precision)
}

// ApplySupporterBonus raises amount by the fixed 5% bonus:
// amount * (PRECISION + 50_000) / PRECISION.
func ApplySupporterBonus(amount *uint256.Int) *uint256.Int {
	return mulDiv(amount, uint256.NewInt(PricePrecision+SupporterBonusScale), precision)
}

// ToTokenUnits shifts an 18-decimal amount down to a token carrying
// missingDecimals fewer decimals.
func ToTokenUnits(amount *uint256.Int, missingDecimals uint8) *uint256.Int {
	if missingDecimals == 0 {
		return new(uint256.Int).Set(amount)
	}
	return new(uint256.Int).Div(amount, pow10(missingDecimals))
}

// ToStandardUnits shifts a token amount up to 18 decimals.
func ToStandardUnits(amount *uint256.Int, missingDecimals uint8) *uint256.Int {
	if missingDecimals == 0 {
		return new(uint256.Int).Set(amount)
	}
	return new(uint256.Int).Mul(amount, pow10(missingDecimals))
}

func pow10(n uint8) *uint256.Int {
	z := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		z.Mul(z, ten)
	}
	return z
}

// CalculateMintAmounts computes the collateral and governance amounts a
// mint of p.DollarAmount requires, and the dollars actually minted.
//
// Three regimes: full collateral (ratio >= PRECISION or forced), full
// governance (ratio == 0), and mixed. The fee is deducted first; the
// 5% supporter bonus applies strictly when the governance token is part
// of the mint, never on ratio alone.
func CalculateMintAmounts(p MintParams) (*MintResult, error) {
	if p.DollarAmount == nil || p.CollateralAtFullRatio == nil {
		return nil, ErrInvalidArgument
	}
	if p.MintingFee < 0 || p.MintingFee >= 1 {
		return nil, ErrInvalidArgument
	}

	res := &MintResult{
		CollateralNeeded: new(uint256.Int),
		GovernanceNeeded: new(uint256.Int),
	}

	switch {
	case p.ForceCollateralOnly || p.CollateralRatio >= PricePrecision:
		res.CollateralNeeded.Set(p.CollateralAtFullRatio)

	case p.CollateralRatio == 0:
		if p.GovernancePrice == 0 {
			return nil, ErrInvalidPriceData
		}
		res.GovernanceNeeded = mulDiv(p.DollarAmount, precision, uint256.NewInt(p.GovernancePrice))

	default:
		if p.GovernancePrice == 0 {
			return nil, ErrInvalidPriceData
		}
		ratio := uint256.NewInt(p.CollateralRatio)
		dollarForCollateral := mulDiv(p.DollarAmount, ratio, precision)
		dollarForGovernance := new(uint256.Int).Sub(p.DollarAmount, dollarForCollateral)
		res.CollateralNeeded = mulDiv(p.CollateralAtFullRatio, ratio, precision)
		res.GovernanceNeeded = mulDiv(dollarForGovernance, precision, uint256.NewInt(p.GovernancePrice))
	}

	feeAdjusted := FeeAdjust(p.DollarAmount, ScaleFee(p.MintingFee))
	if !res.GovernanceNeeded.IsZero() {
		res.TotalDollarMint = ApplySupporterBonus(feeAdjusted)
	} else {
		res.TotalDollarMint = feeAdjusted
	}

	return res, nil
}

// CalculateRedeemAmounts computes the collateral and governance payout
// for redeeming p.DollarAmount.
//
// The redemption fee is deducted before any conversion. The supporter
// bonus applies whenever governance tokens are paid out (ratio below
// PRECISION). The caller must have quoted CollateralForFeeAdjusted
// on-chain with the fee-adjusted dollar amount.
func CalculateRedeemAmounts(p RedeemParams) (*RedeemResult, error) {
	if p.DollarAmount == nil || p.CollateralForFeeAdjusted == nil {
		return nil, ErrInvalidArgument
	}
	if p.RedemptionFee < 0 || p.RedemptionFee >= 1 {
		return nil, ErrInvalidArgument
	}

	feeAdjusted := FeeAdjust(p.DollarAmount, ScaleFee(p.RedemptionFee))
	res := &RedeemResult{
		CollateralRedeemed: new(uint256.Int),
		GovernanceRedeemed: new(uint256.Int),
	}

	switch {
	case p.CollateralRatio >= PricePrecision:
		// Pure collateral payout, no bonus.
		res.CollateralRedeemed.Set(p.CollateralForFeeAdjusted)

	case p.CollateralRatio == 0:
		if p.GovernancePrice == 0 {
			return nil, ErrInvalidPriceData
		}
		payout := ApplySupporterBonus(feeAdjusted)
		res.GovernanceRedeemed = mulDiv(payout, precision, uint256.NewInt(p.GovernancePrice))

	default:
		if p.GovernancePrice == 0 {
			return nil, ErrInvalidPriceData
		}
		ratio := uint256.NewInt(p.CollateralRatio)
		payout := ApplySupporterBonus(feeAdjusted)
		res.CollateralRedeemed = mulDiv(p.CollateralForFeeAdjusted, ratio, precision)
		res.GovernanceRedeemed = mulDiv(payout, uint256.NewInt(PricePrecision-p.CollateralRatio), uint256.NewInt(p.GovernancePrice))
	}

	return res, nil
}
