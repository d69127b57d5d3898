package fpmath

import (
	"errors"
	"math"
	"testing"
)

func TestMulDiv_Basic(t *testing.T) {
	got, err := MulDiv(100, 400, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
}

func TestMulDiv_Floors(t *testing.T) {
	got, err := MulDiv(7, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 {
		t.Errorf("expected floor(21/2)=10, got %d", got)
	}
}

func TestMulDiv_WideIntermediate(t *testing.T) {
	// a*b overflows 64 bits but the quotient fits.
	a := uint64(math.MaxUint64)
	got, err := MulDiv(a, 1000, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != a {
		t.Errorf("expected %d, got %d", a, got)
	}
}

func TestMulDiv_ZeroDenominator(t *testing.T) {
	if _, err := MulDiv(1, 1, 0); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestMulDiv_ResultOverflow(t *testing.T) {
	if _, err := MulDiv(math.MaxUint64, 2, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestMul_Overflow(t *testing.T) {
	if _, err := Mul(math.MaxUint64, 2); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	got, err := Mul(1<<32, 1<<31)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1<<63 {
		t.Errorf("expected 2^63, got %d", got)
	}
}

func TestAddSub(t *testing.T) {
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow on add wrap, got %v", err)
	}
	if _, err := Sub(0, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow on sub borrow, got %v", err)
	}
	sum, err := Add(40, 2)
	if err != nil || sum != 42 {
		t.Errorf("Add(40,2) = %d, %v", sum, err)
	}
	diff, err := Sub(42, 2)
	if err != nil || diff != 40 {
		t.Errorf("Sub(42,2) = %d, %v", diff, err)
	}
}

func TestSqrtProduct(t *testing.T) {
	tests := []struct {
		a, b, want uint64
	}{
		{0, 0, 0},
		{1, 1, 1},
		{100, 400, 200},
		{2, 2, 2},
		{10, 10, 10},
		{999, 1, 31}, // floor(sqrt(999))
	}
	for _, tt := range tests {
		if got := SqrtProduct(tt.a, tt.b); got != tt.want {
			t.Errorf("SqrtProduct(%d,%d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSqrtProduct_MaxOperands(t *testing.T) {
	// sqrt((2^64-1)^2) must be exactly 2^64-1.
	a := uint64(math.MaxUint64)
	if got := SqrtProduct(a, a); got != a {
		t.Errorf("expected %d, got %d", a, got)
	}
}
