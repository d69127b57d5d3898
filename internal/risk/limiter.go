// Package risk enforces per-account exposure limits on leveraged
// positions. Limits are expressed in quote notional: a single new position
// may not exceed MaxPositionNotional, and an account's aggregate open
// notional (existing entries valued at their entry price) may not exceed
// MaxAccountNotional.
package risk

import (
	"errors"

	"github.com/parallaxfi/dex-engine/internal/fpmath"
	"github.com/parallaxfi/dex-engine/internal/model"
)

var (
	// ErrPositionLimitExceeded is returned when a single position's
	// notional exceeds the per-position maximum.
	ErrPositionLimitExceeded = errors.New("risk: position notional limit exceeded")

	// ErrAccountLimitExceeded is returned when a new position would push
	// the account's aggregate notional beyond the account maximum.
	ErrAccountLimitExceeded = errors.New("risk: account notional limit exceeded")
)

// PositionLimiter caps the notional exposure a single account may carry.
// Zero-valued limits disable the corresponding check.
type PositionLimiter struct {
	// MaxPositionNotional is the maximum notional of any one position.
	MaxPositionNotional uint64

	// MaxAccountNotional is the maximum aggregate notional across all of
	// an account's open positions plus the proposed one.
	MaxAccountNotional uint64
}

// NewPositionLimiter creates a limiter with the given caps.
func NewPositionLimiter(maxPosition, maxAccount uint64) *PositionLimiter {
	return &PositionLimiter{
		MaxPositionNotional: maxPosition,
		MaxAccountNotional:  maxAccount,
	}
}

// CheckLimit validates a proposed position notional against the account's
// existing open positions.
func (l *PositionLimiter) CheckLimit(proposedNotional uint64, existing []model.Position) error {
	if l.MaxPositionNotional > 0 && proposedNotional > l.MaxPositionNotional {
		return ErrPositionLimitExceeded
	}
	if l.MaxAccountNotional == 0 {
		return nil
	}

	total := proposedNotional
	for i := range existing {
		p := &existing[i]
		notional, err := fpmath.Mul(p.AbsSize(), p.EntryPrice)
		if err != nil {
			return err
		}
		if total, err = fpmath.Add(total, notional); err != nil {
			return err
		}
	}
	if total > l.MaxAccountNotional {
		return ErrAccountLimitExceeded
	}
	return nil
}
