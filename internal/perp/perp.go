// Package perp implements margin, PnL, funding settlement, and liquidation
// math for leveraged perpetual positions, plus the market's aggregate
// exposure bookkeeping.
//
// Ratios are in basis points (parts per 10,000). Prices carry 2 implied
// decimals. Two behaviors here are deliberate and pending product
// sign-off rather than silent fixes:
//
//   - Liquidation treats the PnL magnitude as a deduction from collateral
//     regardless of whether the position is in profit (QuoteLiquidation).
//   - The funding index accumulates the unsigned rate magnitude, so it is
//     monotonically non-decreasing even when the rate flips sign
//     (UpdateFunding in funding.go).
package perp

import (
	"errors"
	"time"

	"github.com/parallaxfi/dex-engine/internal/fpmath"
	"github.com/parallaxfi/dex-engine/internal/model"
)

const (
	// MaxLeverage bounds position leverage (inclusive).
	MaxLeverage = 20

	// BpsDenominator converts basis points to ratios.
	BpsDenominator = 10000

	// PriceImpactCap bounds the estimated price impact at 10%.
	PriceImpactCap = 1000
)

var (
	// ErrInvalidSize is returned for zero-size positions.
	ErrInvalidSize = errors.New("perp: position size must be non-zero")

	// ErrInvalidCollateral is returned for zero collateral.
	ErrInvalidCollateral = errors.New("perp: collateral must be positive")

	// ErrInvalidLeverage is returned for leverage outside [1, MaxLeverage].
	ErrInvalidLeverage = errors.New("perp: leverage out of range")

	// ErrInvalidMarginRatios is returned when a market's maintenance
	// margin ratio does not sit strictly below its initial margin ratio.
	ErrInvalidMarginRatios = errors.New("perp: maintenance margin ratio must be below initial margin ratio")

	// ErrInsufficientCollateral is returned when collateral cannot cover
	// the leverage-adjusted initial margin.
	ErrInsufficientCollateral = errors.New("perp: insufficient collateral for position")

	// ErrPriceImpactTooHigh is returned when the size's estimated impact
	// exceeds the caller's tolerance.
	ErrPriceImpactTooHigh = errors.New("perp: price impact too high")

	// ErrSlippageExceeded is returned when settlement falls below the
	// caller's minimum.
	ErrSlippageExceeded = errors.New("perp: slippage tolerance exceeded")

	// ErrCannotLiquidate is returned when the position is still above
	// maintenance margin.
	ErrCannotLiquidate = errors.New("perp: position is not liquidatable")

	// ErrInsufficientCollateralForLiquidation is returned when remaining
	// collateral cannot cover the liquidation fee.
	ErrInsufficientCollateralForLiquidation = errors.New("perp: insufficient collateral for liquidation fee")
)

// ValidateMarginRatios checks the market configuration invariant enforced
// at market creation.
func ValidateMarginRatios(initial, maintenance uint64) error {
	if initial == 0 || maintenance >= initial {
		return ErrInvalidMarginRatios
	}
	return nil
}

func absSize(size int64) uint64 {
	if size < 0 {
		return uint64(-size)
	}
	return uint64(size)
}

// OpenQuote is the validated entry computation for a new position.
type OpenQuote struct {
	Notional       uint64 `json:"notional"`
	RequiredMargin uint64 `json:"required_margin"`
	PriceImpact    uint64 `json:"price_impact"` // bps, capped at PriceImpactCap
}

// QuoteOpen validates position entry against the market snapshot and the
// oracle price. It performs no mutation; ApplyOpen commits the aggregate
// update after external effects succeed.
func QuoteOpen(m *model.PerpetualMarket, oraclePrice uint64, size int64, collateral uint64, leverage uint8, maxPriceImpact uint64) (OpenQuote, error) {
	if size == 0 {
		return OpenQuote{}, ErrInvalidSize
	}
	if collateral == 0 {
		return OpenQuote{}, ErrInvalidCollateral
	}
	if leverage < 1 || leverage > MaxLeverage {
		return OpenQuote{}, ErrInvalidLeverage
	}

	notional, err := fpmath.Mul(absSize(size), oraclePrice)
	if err != nil {
		return OpenQuote{}, err
	}
	requiredMargin, err := fpmath.MulDiv(notional, m.InitialMarginRatio, BpsDenominator)
	if err != nil {
		return OpenQuote{}, err
	}
	if collateral < requiredMargin/uint64(leverage) {
		return OpenQuote{}, ErrInsufficientCollateral
	}

	impact := PriceImpact(size, m.OpenInterest)
	if impact > maxPriceImpact {
		return OpenQuote{}, ErrPriceImpactTooHigh
	}

	return OpenQuote{
		Notional:       notional,
		RequiredMargin: requiredMargin,
		PriceImpact:    impact,
	}, nil
}

// PriceImpact estimates the bps impact of a size against current open
// interest, capped at PriceImpactCap. A fresh market (zero open interest)
// has no book to move and reports zero.
func PriceImpact(size int64, openInterest uint64) uint64 {
	if openInterest == 0 {
		return 0
	}
	impact, err := fpmath.MulDiv(absSize(size), BpsDenominator, max(openInterest, 1))
	if err != nil || impact > PriceImpactCap {
		return PriceImpactCap
	}
	return impact
}

// ApplyOpen adds a position's size to the market aggregates.
func ApplyOpen(m *model.PerpetualMarket, size int64) error {
	abs := absSize(size)
	var err error
	if size > 0 {
		if m.TotalLong, err = fpmath.Add(m.TotalLong, abs); err != nil {
			return err
		}
	} else {
		if m.TotalShort, err = fpmath.Add(m.TotalShort, abs); err != nil {
			return err
		}
	}
	m.OpenInterest, err = fpmath.Add(m.OpenInterest, abs)
	return err
}

// ApplyClose removes a position's size from the market aggregates. Used by
// both voluntary close and liquidation.
func ApplyClose(m *model.PerpetualMarket, size int64) error {
	abs := absSize(size)
	var err error
	if size > 0 {
		if m.TotalLong, err = fpmath.Sub(m.TotalLong, abs); err != nil {
			return err
		}
	} else {
		if m.TotalShort, err = fpmath.Sub(m.TotalShort, abs); err != nil {
			return err
		}
	}
	m.OpenInterest, err = fpmath.Sub(m.OpenInterest, abs)
	return err
}

// PnLMagnitude returns |exitPrice - entryPrice| * |size| and whether the
// move favors the position (long profits when exit >= entry, short when
// entry >= exit).
func PnLMagnitude(size int64, entryPrice, exitPrice uint64) (uint64, bool, error) {
	var diff uint64
	if exitPrice >= entryPrice {
		diff = exitPrice - entryPrice
	} else {
		diff = entryPrice - exitPrice
	}
	magnitude, err := fpmath.Mul(diff, absSize(size))
	if err != nil {
		return 0, false, err
	}

	var isProfit bool
	if size > 0 {
		isProfit = exitPrice >= entryPrice
	} else {
		isProfit = entryPrice >= exitPrice
	}
	return magnitude, isProfit, nil
}

// FundingPayment returns |currentIndex - lastIndex| and whether the
// position receives it (longs receive when the index moved down, shorts
// when it moved up).
func FundingPayment(size int64, lastIndex, currentIndex uint64) (uint64, bool) {
	var payment uint64
	if currentIndex > lastIndex {
		payment = currentIndex - lastIndex
	} else {
		payment = lastIndex - currentIndex
	}
	isReceived := (size > 0 && currentIndex < lastIndex) ||
		(size < 0 && currentIndex > lastIndex)
	return payment, isReceived
}

// CloseQuote is the settlement computation for a voluntary close.
type CloseQuote struct {
	Settlement      uint64 `json:"settlement"`
	PnL             uint64 `json:"pnl"` // magnitude
	IsProfit        bool   `json:"is_profit"`
	Funding         uint64 `json:"funding"` // magnitude
	FundingReceived bool   `json:"funding_received"`
}

// QuoteClose computes the settlement owed for closing a position at
// exitPrice, applying PnL and then funding against the collateral.
//
// A loss larger than the running settlement zeroes it (the owner cannot go
// negative); an unaffordable funding payment is skipped instead of zeroing.
// The asymmetry is deliberate; see the package comment.
func QuoteClose(m *model.PerpetualMarket, p *model.Position, exitPrice, minReceive uint64) (CloseQuote, error) {
	pnl, isProfit, err := PnLMagnitude(p.Size, p.EntryPrice, exitPrice)
	if err != nil {
		return CloseQuote{}, err
	}
	funding, fundingReceived := FundingPayment(p.Size, p.LastFundingIndex, m.FundingIndex)

	settlement := p.Collateral
	if isProfit {
		if settlement, err = fpmath.Add(settlement, pnl); err != nil {
			return CloseQuote{}, err
		}
	} else if pnl <= settlement {
		settlement -= pnl
	} else {
		settlement = 0
	}

	if fundingReceived {
		if settlement, err = fpmath.Add(settlement, funding); err != nil {
			return CloseQuote{}, err
		}
	} else if funding <= settlement {
		settlement -= funding
	}

	if settlement < minReceive {
		return CloseQuote{}, ErrSlippageExceeded
	}

	return CloseQuote{
		Settlement:      settlement,
		PnL:             pnl,
		IsProfit:        isProfit,
		Funding:         funding,
		FundingReceived: fundingReceived,
	}, nil
}

// LiquidationQuote is the computation for a forced close.
type LiquidationQuote struct {
	RemainingCollateral uint64 `json:"remaining_collateral"`
	Notional            uint64 `json:"notional"`
	MarginRatio         uint64 `json:"margin_ratio"` // bps
	Fee                 uint64 `json:"fee"`
	// Residual is remaining collateral after the fee. It has no routed
	// destination; it is surfaced so the amount is at least observable.
	Residual uint64 `json:"residual"`
}

// QuoteLiquidation checks liquidation eligibility at currentPrice and
// computes the liquidator's fee.
//
// The PnL magnitude is deducted from collateral without consulting its
// direction, so a profitable position is valued as if it had lost. See
// the package comment.
func QuoteLiquidation(m *model.PerpetualMarket, p *model.Position, currentPrice uint64) (LiquidationQuote, error) {
	pnl, _, err := PnLMagnitude(p.Size, p.EntryPrice, currentPrice)
	if err != nil {
		return LiquidationQuote{}, err
	}

	remaining := uint64(0)
	if pnl <= p.Collateral {
		remaining = p.Collateral - pnl
	}

	notional, err := fpmath.Mul(p.AbsSize(), currentPrice)
	if err != nil {
		return LiquidationQuote{}, err
	}
	marginRatio, err := fpmath.MulDiv(remaining, BpsDenominator, notional)
	if err != nil {
		return LiquidationQuote{}, err
	}
	if marginRatio >= m.MaintenanceMarginRatio {
		return LiquidationQuote{}, ErrCannotLiquidate
	}

	fee, err := fpmath.MulDiv(notional, m.LiquidationFeeBps, BpsDenominator)
	if err != nil {
		return LiquidationQuote{}, err
	}
	if remaining < fee {
		return LiquidationQuote{}, ErrInsufficientCollateralForLiquidation
	}

	return LiquidationQuote{
		RemainingCollateral: remaining,
		Notional:            notional,
		MarginRatio:         marginRatio,
		Fee:                 fee,
		Residual:            remaining - fee,
	}, nil
}

// NewPosition builds the position entity recorded after a successful open.
func NewPosition(id string, m *model.PerpetualMarket, owner string, size int64, oraclePrice, collateral uint64, leverage uint8, now time.Time) *model.Position {
	return &model.Position{
		ID:               id,
		MarketID:         m.ID,
		Owner:            owner,
		Size:             size,
		EntryPrice:       oraclePrice,
		Collateral:       collateral,
		Leverage:         leverage,
		LastFundingIndex: m.FundingIndex,
		CreatedAt:        now,
	}
}
