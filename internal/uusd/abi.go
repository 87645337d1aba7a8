// ===========================
// File: internal/uusd/abi.go
// ===========================
package uusd

// Minimal ABI fragments for the protocol diamond. Only the read-side
// functions the client actually calls are declared.
const (
	// Dollar pool facet ABI (minimal)
	PoolFacetABI = `[
		{"inputs":[],"name":"collateralRatio","outputs":[{"internalType":"uint256","name":"ratio","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"getGovernancePriceUsd","outputs":[{"internalType":"uint256","name":"governancePriceUsd","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"getDollarPriceUsd","outputs":[{"internalType":"uint256","name":"dollarPriceUsd","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"uint256","name":"collateralIndex","type":"uint256"},{"internalType":"uint256","name":"dollarAmount","type":"uint256"}],"name":"getDollarInCollateral","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"allCollaterals","outputs":[{"internalType":"address[]","name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"address","name":"collateralAddress","type":"address"}],"name":"collateralInformation","outputs":[{"components":[{"internalType":"uint256","name":"index","type":"uint256"},{"internalType":"string","name":"symbol","type":"string"},{"internalType":"address","name":"collateralAddress","type":"address"},{"internalType":"address","name":"collateralPriceFeedAddress","type":"address"},{"internalType":"uint256","name":"collateralPriceFeedStalenessThreshold","type":"uint256"},{"internalType":"bool","name":"isEnabled","type":"bool"},{"internalType":"uint256","name":"missingDecimals","type":"uint256"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"uint256","name":"poolCeiling","type":"uint256"},{"internalType":"bool","name":"isMintPaused","type":"bool"},{"internalType":"bool","name":"isRedeemPaused","type":"bool"},{"internalType":"bool","name":"isBorrowPaused","type":"bool"},{"internalType":"uint256","name":"mintingFee","type":"uint256"},{"internalType":"uint256","name":"redemptionFee","type":"uint256"}],"internalType":"struct LibDollarPool.CollateralInformation","name":"returnData","type":"tuple"}],"stateMutability":"view","type":"function"}
	]`

	// TWAP oracle facet ABI (minimal)
	TwapOracleABI = `[
		{"inputs":[{"internalType":"address","name":"token","type":"address"}],"name":"consult","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`
)
