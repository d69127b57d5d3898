// Package pool implements the LP-share calculus for constant-product
// liquidity pools.
//
// Share accounting follows the standard Uniswap-v2 rules:
//   - First deposit mints sqrt(amountA * amountB) LP tokens, making the
//     initial share count independent of the deposit ratio.
//   - Later deposits mint min(amountA*supply/reserveA,
//     amountB*supply/reserveB), so an unbalanced deposit is credited at
//     the worse of its two sides and cannot dilute existing providers.
//   - Withdrawals return lpAmount/supply of each reserve, floored.
//
// All division is floor division over 64-bit amounts with 128-bit-safe
// intermediates via fpmath.
package pool

import (
	"errors"

	"github.com/parallaxfi/dex-engine/internal/fpmath"
)

var (
	// ErrInvalidFee is returned when a fee ratio is not a proper fraction.
	ErrInvalidFee = errors.New("pool: invalid fee configuration")

	// ErrSlippageExceeded is returned when a computed amount falls below
	// the caller's minimum.
	ErrSlippageExceeded = errors.New("pool: slippage tolerance exceeded")

	// ErrInsufficientLiquidity is returned when withdrawing from a pool
	// with zero LP supply.
	ErrInsufficientLiquidity = errors.New("pool: insufficient liquidity")
)

// ValidateFee checks that numerator/denominator is a fraction in [0, 1).
func ValidateFee(feeNumerator, feeDenominator uint64) error {
	if feeDenominator == 0 || feeNumerator >= feeDenominator {
		return ErrInvalidFee
	}
	return nil
}

// AddLiquidity returns the LP tokens to mint for depositing amountA and
// amountB against the given reserves and LP supply.
//
// Fails ErrSlippageExceeded if the mint amount is below minLPTokens.
func AddLiquidity(reserveA, reserveB, lpSupply, amountA, amountB, minLPTokens uint64) (uint64, error) {
	var minted uint64

	if lpSupply == 0 {
		minted = fpmath.SqrtProduct(amountA, amountB)
	} else {
		byA, err := fpmath.MulDiv(amountA, lpSupply, reserveA)
		if err != nil {
			return 0, err
		}
		byB, err := fpmath.MulDiv(amountB, lpSupply, reserveB)
		if err != nil {
			return 0, err
		}
		minted = min(byA, byB)
	}

	if minted < minLPTokens {
		return 0, ErrSlippageExceeded
	}
	return minted, nil
}

// RemoveLiquidity returns the token amounts owed for burning lpAmount
// LP tokens.
//
// Fails ErrInsufficientLiquidity if the pool has no LP supply (the
// division guard is explicit, not surfaced as a math error), and
// ErrSlippageExceeded if either amount is below its minimum.
func RemoveLiquidity(reserveA, reserveB, lpSupply, lpAmount, minAmountA, minAmountB uint64) (amountA, amountB uint64, err error) {
	if lpSupply == 0 {
		return 0, 0, ErrInsufficientLiquidity
	}

	amountA, err = fpmath.MulDiv(lpAmount, reserveA, lpSupply)
	if err != nil {
		return 0, 0, err
	}
	amountB, err = fpmath.MulDiv(lpAmount, reserveB, lpSupply)
	if err != nil {
		return 0, 0, err
	}

	if amountA < minAmountA || amountB < minAmountB {
		return 0, 0, ErrSlippageExceeded
	}
	return amountA, amountB, nil
}
