// =============================
// File: internal/uusd/types.go
// =============================
package uusd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Fixed-point scales used across the protocol. All USD-denominated
// values carry six fractional decimals: 1_000_000 == $1.00.
const (
	PricePrecision = 1_000_000
	PegPrice       = PricePrecision
	// SupporterBonusScale is the fixed 5% bonus applied whenever the
	// governance token participates in a mint or redeem.
	SupporterBonusScale = 50_000
	// TokenDecimals is the decimal count of the dollar and governance
	// tokens; collaterals with fewer decimals carry MissingDecimals.
	TokenDecimals = 18
)

// FormatUsd renders a USD-scaled value for logs and display.
func FormatUsd(scaled uint64) string {
	return fmt.Sprintf("$%.4f", float64(scaled)/PricePrecision)
}

// CollateralOption describes one accepted collateral token. Loaded from
// config or the on-chain collateral list; immutable afterwards.
type CollateralOption struct {
	Index           uint64
	Symbol          string
	Address         common.Address
	MintingFee      float64 // fraction, 0.001 == 0.1%
	RedemptionFee   float64
	MissingDecimals uint8 // 18 - token decimals
}

// DefaultCollateral is the well-known index-0 collateral the pool
// launched with. Served without consulting the on-chain registry so
// quoting works before the dynamic list has loaded.
func DefaultCollateral() CollateralOption {
	return CollateralOption{
		Index:         0,
		Symbol:        "LUSD",
		Address:       common.HexToAddress("0x5f98805A4E8be255a32880FDeC7F6728C6568bA0"),
		MintingFee:    0.001,
		RedemptionFee: 0.002,
	}
}

// Thresholds are the protocol-controlled TWAP gates for minting and
// redeeming, USD-scaled.
type Thresholds struct {
	Mint   uint64
	Redeem uint64
}

// MintData is the result of the multiplexed mint-quote fetch.
type MintData struct {
	CollateralRatio  uint64
	GovernancePrice  uint64
	CollateralAmount *uint256.Int
}

// CollateralInfo mirrors the pool facet's collateralInformation struct,
// trimmed to the fields the client consumes.
type CollateralInfo struct {
	Index           uint64
	Symbol          string
	Address         common.Address
	PriceFeed       common.Address
	IsEnabled       bool
	MissingDecimals uint8
	// Price is the collateral's USD price, six decimals.
	Price          uint64
	IsMintPaused   bool
	IsRedeemPaused bool
}

// MintParams are the pure-math inputs for a mint calculation. Token
// amounts are raw 18-decimal integers, prices USD-scaled.
type MintParams struct {
	DollarAmount          *uint256.Int
	CollateralRatio       uint64
	GovernancePrice       uint64
	CollateralAtFullRatio *uint256.Int
	MintingFee            float64
	ForceCollateralOnly   bool
}

// MintResult is the mint calculation outcome.
//
// TotalDollarMint <= DollarAmount unless the supporter bonus applies;
// the bonus is added only after the fee and only when GovernanceNeeded
// is non-zero.
type MintResult struct {
	TotalDollarMint  *uint256.Int
	CollateralNeeded *uint256.Int
	GovernanceNeeded *uint256.Int
}

// RedeemParams are the pure-math inputs for a redeem calculation.
// CollateralForFeeAdjusted must have been quoted on-chain with the
// fee-adjusted dollar amount, not the raw input.
type RedeemParams struct {
	DollarAmount             *uint256.Int
	CollateralRatio          uint64
	GovernancePrice          uint64
	CollateralForFeeAdjusted *uint256.Int
	RedemptionFee            float64
}

// RedeemResult is the redeem calculation outcome.
type RedeemResult struct {
	CollateralRedeemed *uint256.Int
	GovernanceRedeemed *uint256.Int
}

// MintQuoteParams is the service-level mint quote request.
type MintQuoteParams struct {
	DollarAmount        *uint256.Int
	CollateralIndex     uint64
	ForceCollateralOnly bool
}

// MintPriceResult is a full mint quote: the math outcome plus the
// chain state it was computed from and the threshold gate.
type MintPriceResult struct {
	MintResult
	Collateral       CollateralOption
	CollateralRatio  uint64
	GovernancePrice  uint64
	TwapPrice        uint64
	MintThreshold    uint64
	IsMintingAllowed bool
}

// RedeemQuoteParams is the service-level redeem quote request.
type RedeemQuoteParams struct {
	DollarAmount    *uint256.Int
	CollateralIndex uint64
}

// RedeemPriceResult is a full redeem quote.
//
// GovernancePriceAssumed marks the neutral 1.000000 placeholder used
// when the caller skipped the governance price read; consumers must
// never report it as a market price.
type RedeemPriceResult struct {
	RedeemResult
	Collateral             CollateralOption
	CollateralRatio        uint64
	GovernancePrice        uint64
	GovernancePriceAssumed bool
	TwapPrice              uint64
	RedeemThreshold        uint64
	IsRedeemingAllowed     bool
}
