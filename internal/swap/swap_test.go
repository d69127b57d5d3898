package swap

import (
	"errors"
	"math"
	"math/bits"
	"testing"

	"github.com/parallaxfi/dex-engine/internal/fpmath"
	"github.com/parallaxfi/dex-engine/internal/pool"
)

var fee30bps = Config{FeeNumerator: 3, FeeDenominator: 1000}

func TestQuote_Reference(t *testing.T) {
	// fee_multiplier=997, in_with_fee=99700, numerator=99,700,000,
	// denominator=1,099,700, floor = 90.
	out, err := Quote(1000, 1000, 100, fee30bps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != 90 {
		t.Errorf("expected 90, got %d", out)
	}
}

func TestQuote_ConstantProductNonDecreasing(t *testing.T) {
	tests := []struct {
		reserveIn, reserveOut, amountIn uint64
	}{
		{1000, 1000, 100},
		{1000, 1000, 1},
		{5_000_000, 1_000, 37},
		{1_000, 5_000_000, 123_456},
		{1 << 40, 1 << 40, 1 << 20},
	}
	for _, tt := range tests {
		out, err := Quote(tt.reserveIn, tt.reserveOut, tt.amountIn, fee30bps)
		if err != nil {
			t.Fatalf("Quote(%d,%d,%d): %v", tt.reserveIn, tt.reserveOut, tt.amountIn, err)
		}
		if out > tt.reserveOut {
			t.Fatalf("output %d exceeds reserve %d", out, tt.reserveOut)
		}
		beforeHi, beforeLo := bits.Mul64(tt.reserveIn, tt.reserveOut)
		afterHi, afterLo := bits.Mul64(tt.reserveIn+tt.amountIn, tt.reserveOut-out)
		if afterHi < beforeHi || (afterHi == beforeHi && afterLo < beforeLo) {
			t.Errorf("product decreased: %d*%d -> %d*%d",
				tt.reserveIn, tt.reserveOut, tt.reserveIn+tt.amountIn, tt.reserveOut-out)
		}
	}
}

func TestQuote_LargeReservesNoOverflow(t *testing.T) {
	// reserve_in * fee_denominator alone overflows 64 bits; the quote must
	// still be exact.
	rIn := uint64(math.MaxUint64 / 2)
	rOut := uint64(math.MaxUint64 / 2)
	out, err := Quote(rIn, rOut, 1_000_000, fee30bps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// out ≈ amountIn * 997/1000 for balanced reserves this deep.
	if out == 0 || out > 1_000_000 {
		t.Errorf("implausible output %d", out)
	}
}

func TestQuote_ZeroInput(t *testing.T) {
	out, err := Quote(1000, 1000, 0, fee30bps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != 0 {
		t.Errorf("zero input should quote zero, got %d", out)
	}
}

func TestQuote_EmptyPool(t *testing.T) {
	// Zero reserves and zero input leave a zero denominator.
	_, err := Quote(0, 0, 0, fee30bps)
	if !errors.Is(err, fpmath.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestQuote_InvalidFee(t *testing.T) {
	_, err := Quote(1000, 1000, 100, Config{FeeNumerator: 1000, FeeDenominator: 1000})
	if !errors.Is(err, pool.ErrInvalidFee) {
		t.Errorf("expected ErrInvalidFee, got %v", err)
	}
}

func TestSwap_Slippage(t *testing.T) {
	if _, err := Swap(1000, 1000, 100, 91, fee30bps); !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("expected ErrSlippageExceeded, got %v", err)
	}
	out, err := Swap(1000, 1000, 100, 90, fee30bps)
	if err != nil {
		t.Fatalf("minimum equal to quote should pass, got %v", err)
	}
	if out != 90 {
		t.Errorf("expected 90, got %d", out)
	}
}
