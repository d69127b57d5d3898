// Package swap prices constant-product token swaps.
//
// For input reserves (rIn, rOut), input amount a, and fee n/d:
//
//	out = (a*(d-n) * rOut) / (rIn*d + a*(d-n))
//
// which holds rIn*rOut non-decreasing across the swap. All three
// multiplications are formed over wide intermediates so large reserves
// cannot overflow the quote.
package swap

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/parallaxfi/dex-engine/internal/fpmath"
	"github.com/parallaxfi/dex-engine/internal/pool"
)

// ErrSlippageExceeded is returned when the quoted output is below the
// caller's minimum.
var ErrSlippageExceeded = errors.New("swap: slippage tolerance exceeded")

// Config is the pricing fee pair for one swap direction. It carries no LP
// accounting; pools hand their fee fields to the engine per call.
type Config struct {
	FeeNumerator   uint64 `json:"fee_numerator"`
	FeeDenominator uint64 `json:"fee_denominator"`
}

// Validate checks the fee ratio is a proper fraction.
func (c Config) Validate() error {
	return pool.ValidateFee(c.FeeNumerator, c.FeeDenominator)
}

// Quote returns the output amount for swapping amountIn against the given
// reserves, flooring the division.
func Quote(reserveIn, reserveOut, amountIn uint64, c Config) (uint64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	feeMultiplier := c.FeeDenominator - c.FeeNumerator

	var inWithFee, num, den, tmp uint256.Int
	inWithFee.SetUint64(amountIn)
	tmp.SetUint64(feeMultiplier)
	inWithFee.Mul(&inWithFee, &tmp)

	tmp.SetUint64(reserveOut)
	num.Mul(&inWithFee, &tmp)

	den.SetUint64(reserveIn)
	tmp.SetUint64(c.FeeDenominator)
	den.Mul(&den, &tmp)
	den.Add(&den, &inWithFee)

	if den.IsZero() {
		return 0, fpmath.ErrDivisionByZero
	}
	num.Div(&num, &den)
	if !num.IsUint64() {
		return 0, fpmath.ErrOverflow
	}
	return num.Uint64(), nil
}

// Swap quotes amountIn and enforces the caller's minimum output.
func Swap(reserveIn, reserveOut, amountIn, minimumAmountOut uint64, c Config) (uint64, error) {
	amountOut, err := Quote(reserveIn, reserveOut, amountIn, c)
	if err != nil {
		return 0, err
	}
	if amountOut < minimumAmountOut {
		return 0, ErrSlippageExceeded
	}
	return amountOut, nil
}
