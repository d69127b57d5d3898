// Package fpmath provides overflow-checked integer math for token amounts.
//
// Every multiply-then-divide in the engine routes through MulDiv, which
// computes the product in 256 bits before dividing, so reserve-scale
// operands never wrap. Results that do not fit back into 64 bits are an
// error, never a truncation.
package fpmath

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when a result exceeds 64 bits.
	ErrOverflow = errors.New("fpmath: arithmetic overflow")

	// ErrDivisionByZero is returned when a denominator is zero.
	ErrDivisionByZero = errors.New("fpmath: division by zero")
)

// MulDiv computes a*b/denom with a wide intermediate, flooring the
// division. Fails if denom is zero or the quotient exceeds 64 bits.
func MulDiv(a, b, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, ErrDivisionByZero
	}
	var x, y uint256.Int
	x.SetUint64(a)
	y.SetUint64(b)
	x.Mul(&x, &y)
	y.SetUint64(denom)
	x.Div(&x, &y)
	if !x.IsUint64() {
		return 0, ErrOverflow
	}
	return x.Uint64(), nil
}

// Mul computes a*b, failing if the product exceeds 64 bits.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Add computes a+b, failing on wraparound.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub computes a-b, failing if b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// SqrtProduct returns floor(sqrt(a*b)). The product is formed in 256 bits;
// the root of a 128-bit value always fits in 64 bits.
func SqrtProduct(a, b uint64) uint64 {
	var x, y uint256.Int
	x.SetUint64(a)
	y.SetUint64(b)
	x.Mul(&x, &y)
	y.Sqrt(&x)
	return y.Uint64()
}
