// ===============================
// File: internal/router/types.go
// ===============================
package router

import (
	"time"

	"github.com/holiman/uint256"
)

// Direction says which way value moves: into the dollar token
// (deposit) or out of it (withdraw).
type Direction string

const (
	DirectionDeposit  Direction = "deposit"
	DirectionWithdraw Direction = "withdraw"
)

// Route names the venue a route executes on.
type Route string

const (
	RouteMint   Route = "mint"
	RouteRedeem Route = "redeem"
	RouteSwap   Route = "swap"
)

// Savings quantifies the advantage of the chosen route over the best
// rejected alternative. Bps is floored integer basis points and
// Percentage is derived from it, so the two never disagree.
type Savings struct {
	Amount     *uint256.Int
	Bps        uint64
	Percentage float64
}

// RouteResult is one route decision.
//
// ExpectedOutput is the primary output leg: dollar tokens on deposit,
// collateral tokens on withdraw. GovernanceOutput is the extra
// governance leg a mixed redeem pays out; CollateralInput and
// GovernanceInput are the legs a mint consumes. Unused legs stay nil.
type RouteResult struct {
	Direction Direction
	Route     Route

	InputAmount       *uint256.Int
	ExpectedOutput    *uint256.Int
	GovernanceOutput  *uint256.Int
	CollateralInput   *uint256.Int
	GovernanceInput   *uint256.Int
	AlternativeOutput *uint256.Int
	Savings           Savings

	// OraclePrice is the TWAP read the quote was gated on; AmmPrice is
	// the pool-implied dollar price. Either may be zero when its
	// branch failed, both are informational.
	OraclePrice uint64
	AmmPrice    uint64

	// IsEnabled reports the chosen venue's gate state. DisabledReason,
	// when set, explains why the preferred venue was rejected.
	IsEnabled      bool
	DisabledReason string

	Elapsed time.Duration
}
