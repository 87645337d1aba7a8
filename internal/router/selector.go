// ==================================
// File: internal/router/selector.go
// ==================================
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"uusd-router/internal/amm"
	"uusd-router/internal/events"
	"uusd-router/internal/metrics"
	"uusd-router/internal/uusd"
)

const defaultBranchTimeout = 10 * time.Second

// QuoteEngine produces full mint and redeem quotes.
type QuoteEngine interface {
	CalculateMintOutput(ctx context.Context, params uusd.MintQuoteParams) (*uusd.MintPriceResult, error)
	CalculateRedeemOutput(ctx context.Context, params uusd.RedeemQuoteParams, skipGovernancePrice bool) (*uusd.RedeemPriceResult, error)
}

// SwapQuoter quotes the AMM legs of a route.
type SwapQuoter interface {
	QuoteDollarOut(ctx context.Context, collateralIn *uint256.Int) (*uint256.Int, error)
	QuoteCollateralOut(ctx context.Context, dollarIn *uint256.Int) (*uint256.Int, error)
	ImpliedUsdPrice(ctx context.Context, referencePriceUsd uint64) (uint64, error)
}

var (
	_ QuoteEngine = (*uusd.PricingService)(nil)
	_ SwapQuoter  = (*amm.PoolQuoter)(nil)
)

// ReferencePriceFunc resolves the collateral's USD reference price for
// implied AMM pricing.
type ReferencePriceFunc func(ctx context.Context) (uint64, error)

// Selector picks the best execution venue for a deposit or withdraw.
// Every decision gathers its quotes concurrently, applies the policy
// for the direction, and reports the savings against the best
// rejected alternative. Withdraw decisions never select mint.
type Selector struct {
	pricing       QuoteEngine
	swap          SwapQuoter
	refPrice      ReferencePriceFunc
	collateral    uusd.CollateralOption
	branchTimeout time.Duration
	bus           *events.Bus
	metrics       *metrics.Collector
	logger        *zap.Logger
}

// NewSelector wires a selector for one collateral. branchTimeout <= 0
// selects the default; bus and mc may be nil.
func NewSelector(pricing QuoteEngine, swap SwapQuoter, refPrice ReferencePriceFunc, collateral uusd.CollateralOption, branchTimeout time.Duration, bus *events.Bus, mc *metrics.Collector, logger *zap.Logger) *Selector {
	if branchTimeout <= 0 {
		branchTimeout = defaultBranchTimeout
	}
	return &Selector{
		pricing:       pricing,
		swap:          swap,
		refPrice:      refPrice,
		collateral:    collateral,
		branchTimeout: branchTimeout,
		bus:           bus,
		metrics:       mc,
		logger:        logger.Named("router"),
	}
}

// OptimalDepositRoute decides how amount (18-decimal dollar units)
// enters the dollar token: mint against the pool or swap on the AMM.
func (s *Selector) OptimalDepositRoute(ctx context.Context, amount *uint256.Int, forceCollateralOnly bool) (*RouteResult, error) {
	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", uusd.ErrInvalidArgument)
	}
	start := time.Now()

	var (
		mintQuote *uusd.MintPriceResult
		mintErr   error
		altQuote  *uusd.MintPriceResult
		altErr    error
		swapOut   *uint256.Int
		swapErr   error
		ammPrice  uint64
	)

	swapIn := uusd.ToTokenUnits(amount, s.collateral.MissingDecimals)

	var g errgroup.Group
	g.Go(func() error {
		mintErr = s.branch(ctx, "mint_quote", func(bctx context.Context) error {
			var err error
			mintQuote, err = s.pricing.CalculateMintOutput(bctx, uusd.MintQuoteParams{
				DollarAmount:        amount,
				CollateralIndex:     s.collateral.Index,
				ForceCollateralOnly: forceCollateralOnly,
			})
			return err
		})
		return nil
	})
	if !forceCollateralOnly {
		g.Go(func() error {
			altErr = s.branch(ctx, "collateral_only_quote", func(bctx context.Context) error {
				var err error
				altQuote, err = s.pricing.CalculateMintOutput(bctx, uusd.MintQuoteParams{
					DollarAmount:        amount,
					CollateralIndex:     s.collateral.Index,
					ForceCollateralOnly: true,
				})
				return err
			})
			return nil
		})
	}
	g.Go(func() error {
		swapErr = s.branch(ctx, "swap_quote", func(bctx context.Context) error {
			var err error
			swapOut, err = s.swap.QuoteDollarOut(bctx, swapIn)
			return err
		})
		return nil
	})
	g.Go(func() error {
		s.branch(ctx, "amm_price", func(bctx context.Context) error {
			ref, err := s.refPrice(bctx)
			if err != nil {
				return err
			}
			ammPrice, err = s.swap.ImpliedUsdPrice(bctx, ref)
			return err
		})
		return nil
	})
	_ = g.Wait()

	result := &RouteResult{
		Direction:   DirectionDeposit,
		InputAmount: amount.Clone(),
		AmmPrice:    ammPrice,
	}

	switch {
	case mintErr != nil:
		// Swap-only fallback, taken exactly once.
		if swapErr != nil {
			return nil, fmt.Errorf("%w: mint: %v; swap: %v", ErrRouteCalculationFailed, mintErr, swapErr)
		}
		s.fillSwapRoute(result, swapOut, fmt.Sprintf("mint quote failed: %v", mintErr))

	case !mintQuote.IsMintingAllowed:
		result.OraclePrice = mintQuote.TwapPrice
		if swapErr != nil {
			return nil, fmt.Errorf("%w: minting disabled and swap failed: %v", ErrRouteCalculationFailed, swapErr)
		}
		s.fillSwapRoute(result, swapOut, fmt.Sprintf("minting disabled: TWAP %s below mint threshold %s",
			uusd.FormatUsd(mintQuote.TwapPrice), uusd.FormatUsd(mintQuote.MintThreshold)))

	case forceCollateralOnly:
		// Collateral-only mint against swap; mint wins ties.
		if swapErr == nil && swapOut.Gt(mintQuote.TotalDollarMint) {
			result.OraclePrice = mintQuote.TwapPrice
			s.fillSwapRoute(result, swapOut, "")
			result.AlternativeOutput = mintQuote.TotalDollarMint.Clone()
		} else {
			s.fillMintRoute(result, mintQuote)
			if swapErr == nil {
				result.AlternativeOutput = swapOut.Clone()
			}
		}

	default:
		// Mixed mint preferred: the supporter bonus mechanically beats
		// every governance-free path. The best governance-free output
		// is still reported for the savings figure.
		s.fillMintRoute(result, mintQuote)
		result.AlternativeOutput = bestAlternative(altQuote, altErr, swapOut, swapErr)
	}

	s.finish(result, start)
	return result, nil
}

// OptimalWithdrawRoute decides how amount (18-decimal dollar units)
// exits the dollar token: redeem against the pool or swap on the AMM.
// Mint is never a withdraw venue.
func (s *Selector) OptimalWithdrawRoute(ctx context.Context, amount *uint256.Int, lusdOnly bool) (*RouteResult, error) {
	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", uusd.ErrInvalidArgument)
	}
	start := time.Now()

	var (
		redeemQuote *uusd.RedeemPriceResult
		redeemErr   error
		swapOut     *uint256.Int
		swapErr     error
		ammPrice    uint64
	)

	var g errgroup.Group
	g.Go(func() error {
		redeemErr = s.branch(ctx, "redeem_quote", func(bctx context.Context) error {
			var err error
			// A collateral-only exit never consumes the governance
			// leg, so its price read is skipped.
			redeemQuote, err = s.pricing.CalculateRedeemOutput(bctx, uusd.RedeemQuoteParams{
				DollarAmount:    amount,
				CollateralIndex: s.collateral.Index,
			}, lusdOnly)
			return err
		})
		return nil
	})
	g.Go(func() error {
		swapErr = s.branch(ctx, "swap_quote", func(bctx context.Context) error {
			var err error
			swapOut, err = s.swap.QuoteCollateralOut(bctx, amount)
			return err
		})
		return nil
	})
	g.Go(func() error {
		s.branch(ctx, "amm_price", func(bctx context.Context) error {
			ref, err := s.refPrice(bctx)
			if err != nil {
				return err
			}
			ammPrice, err = s.swap.ImpliedUsdPrice(bctx, ref)
			return err
		})
		return nil
	})
	_ = g.Wait()

	result := &RouteResult{
		Direction:   DirectionWithdraw,
		InputAmount: amount.Clone(),
		AmmPrice:    ammPrice,
	}

	switch {
	case redeemErr != nil:
		if swapErr != nil {
			return nil, fmt.Errorf("%w: redeem: %v; swap: %v", ErrRouteCalculationFailed, redeemErr, swapErr)
		}
		s.fillSwapRoute(result, swapOut, fmt.Sprintf("redeem quote failed: %v", redeemErr))

	case !redeemQuote.IsRedeemingAllowed:
		result.OraclePrice = redeemQuote.TwapPrice
		if swapErr != nil {
			return nil, fmt.Errorf("%w: redeeming disabled and swap failed: %v", ErrRouteCalculationFailed, swapErr)
		}
		s.fillSwapRoute(result, swapOut, fmt.Sprintf("redeeming disabled: TWAP %s below redeem threshold %s",
			uusd.FormatUsd(redeemQuote.TwapPrice), uusd.FormatUsd(redeemQuote.RedeemThreshold)))

	case lusdOnly:
		// Pure collateral exit: swap against the collateral leg only,
		// redeem wins ties.
		if swapErr == nil && swapOut.Gt(redeemQuote.CollateralRedeemed) {
			result.OraclePrice = redeemQuote.TwapPrice
			s.fillSwapRoute(result, swapOut, "")
			result.AlternativeOutput = redeemQuote.CollateralRedeemed.Clone()
		} else {
			s.fillRedeemRoute(result, redeemQuote)
			if swapErr == nil {
				result.AlternativeOutput = swapOut.Clone()
			}
		}

	default:
		// Mixed redeem preferred for the governance bonus; the
		// forgone swap is the alternative.
		s.fillRedeemRoute(result, redeemQuote)
		if swapErr == nil {
			result.AlternativeOutput = swapOut.Clone()
		}
	}

	s.finish(result, start)
	return result, nil
}

// branch runs one gather step under its own deadline. A deadline hit
// inside the branch is reported as a branch timeout; the parent
// context and sibling branches are unaffected.
func (s *Selector) branch(ctx context.Context, name string, fn func(context.Context) error) error {
	bctx, cancel := context.WithTimeout(ctx, s.branchTimeout)
	defer cancel()

	err := fn(bctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = NewBranchTimeoutError(name)
	}
	s.logger.Debug("route branch failed",
		zap.String("branch", name),
		zap.Error(err))
	return err
}

func (s *Selector) fillMintRoute(r *RouteResult, q *uusd.MintPriceResult) {
	r.Route = RouteMint
	r.ExpectedOutput = q.TotalDollarMint.Clone()
	r.CollateralInput = q.CollateralNeeded.Clone()
	r.GovernanceInput = q.GovernanceNeeded.Clone()
	r.OraclePrice = q.TwapPrice
	r.IsEnabled = q.IsMintingAllowed
}

func (s *Selector) fillRedeemRoute(r *RouteResult, q *uusd.RedeemPriceResult) {
	r.Route = RouteRedeem
	r.ExpectedOutput = q.CollateralRedeemed.Clone()
	// An assumed governance price must never surface as a payout
	// quote; the governance leg is omitted in that case.
	if !q.GovernancePriceAssumed {
		r.GovernanceOutput = q.GovernanceRedeemed.Clone()
	}
	r.OraclePrice = q.TwapPrice
	r.IsEnabled = q.IsRedeemingAllowed
}

func (s *Selector) fillSwapRoute(r *RouteResult, out *uint256.Int, disabledReason string) {
	r.Route = RouteSwap
	r.ExpectedOutput = out.Clone()
	r.IsEnabled = true
	r.DisabledReason = disabledReason
}

func (s *Selector) finish(r *RouteResult, start time.Time) {
	r.Savings = computeSavings(r.ExpectedOutput, r.AlternativeOutput)
	r.Elapsed = time.Since(start)

	s.metrics.RecordRoute(string(r.Direction), string(r.Route), r.Elapsed)
	s.publish(r)
	s.logger.Info("🧭 Route selected",
		zap.String("direction", string(r.Direction)),
		zap.String("route", string(r.Route)),
		zap.String("expected_output", r.ExpectedOutput.String()),
		zap.Uint64("savings_bps", r.Savings.Bps),
		zap.Duration("elapsed", r.Elapsed))
}

func (s *Selector) publish(r *RouteResult) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(events.RouteComputedEvent{
		BaseEvent:      events.BaseEvent{EventType: events.RouteComputed, EventTime: time.Now()},
		Direction:      string(r.Direction),
		Route:          string(r.Route),
		InputAmount:    r.InputAmount.String(),
		ExpectedOutput: r.ExpectedOutput.String(),
		SavingsBps:     r.Savings.Bps,
		DisabledReason: r.DisabledReason,
		Elapsed:        r.Elapsed,
	})
}

// bestAlternative picks the larger governance-free output out of the
// collateral-only mint and the swap, ignoring failed branches.
func bestAlternative(alt *uusd.MintPriceResult, altErr error, swapOut *uint256.Int, swapErr error) *uint256.Int {
	var best *uint256.Int
	if altErr == nil && alt != nil {
		best = alt.TotalDollarMint
	}
	if swapErr == nil && swapOut != nil && (best == nil || swapOut.Gt(best)) {
		best = swapOut
	}
	if best == nil {
		return nil
	}
	return best.Clone()
}

// computeSavings applies the documented formula: amount is the chosen
// route's advantage clamped at zero, bps is floored, and the
// percentage is bps / 100 so the two never disagree. No alternative
// means no savings claim.
func computeSavings(chosen, alternative *uint256.Int) Savings {
	none := Savings{Amount: uint256.NewInt(0)}
	if chosen == nil || alternative == nil || alternative.IsZero() {
		return none
	}
	if !chosen.Gt(alternative) {
		return none
	}
	diff := new(uint256.Int).Sub(chosen, alternative)
	bps := new(uint256.Int).Mul(diff, uint256.NewInt(10_000))
	bps.Div(bps, alternative)
	if !bps.IsUint64() {
		return Savings{Amount: diff, Bps: 0, Percentage: 0}
	}
	b := bps.Uint64()
	return Savings{Amount: diff, Bps: b, Percentage: float64(b) / 100.0}
}
