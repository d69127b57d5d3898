package pool

import (
	"errors"
	"math"
	"testing"

	"github.com/parallaxfi/dex-engine/internal/fpmath"
)

// --- Fee validation ---

func TestValidateFee(t *testing.T) {
	tests := []struct {
		name     string
		num, den uint64
		wantErr  error
	}{
		{"standard 30bps", 3, 1000, nil},
		{"zero fee", 0, 1000, nil},
		{"zero denominator", 3, 0, ErrInvalidFee},
		{"numerator equals denominator", 1000, 1000, ErrInvalidFee},
		{"numerator exceeds denominator", 1001, 1000, ErrInvalidFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateFee(tt.num, tt.den); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFee(%d,%d) = %v, want %v", tt.num, tt.den, err, tt.wantErr)
			}
		})
	}
}

// --- Add liquidity ---

func TestAddLiquidity_FirstDeposit(t *testing.T) {
	// sqrt(100 * 400) = sqrt(40000) = 200
	minted, err := AddLiquidity(0, 0, 0, 100, 400, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if minted != 200 {
		t.Errorf("expected 200 LP tokens on first deposit, got %d", minted)
	}
}

func TestAddLiquidity_Proportional(t *testing.T) {
	// Doubling both reserves mints the full current supply.
	minted, err := AddLiquidity(1000, 4000, 2000, 1000, 4000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if minted != 2000 {
		t.Errorf("expected 2000, got %d", minted)
	}
}

func TestAddLiquidity_UnbalancedTakesMin(t *testing.T) {
	// amountA side credits 10% of supply, amountB side only 5%; the
	// deposit must be credited at the worse side.
	minted, err := AddLiquidity(1000, 4000, 2000, 100, 200, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if minted != 100 { // min(100*2000/1000, 200*2000/4000) = min(200, 100)
		t.Errorf("expected 100, got %d", minted)
	}
}

func TestAddLiquidity_SlippageExceeded(t *testing.T) {
	_, err := AddLiquidity(0, 0, 0, 100, 400, 201)
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("expected ErrSlippageExceeded, got %v", err)
	}
}

func TestAddLiquidity_ExactMinimumAccepted(t *testing.T) {
	if _, err := AddLiquidity(0, 0, 0, 100, 400, 200); err != nil {
		t.Errorf("mint equal to minimum should pass, got %v", err)
	}
}

func TestAddLiquidity_ZeroReserveSurfacesMathError(t *testing.T) {
	// Non-empty supply with a zeroed reserve is a corrupted pool; the
	// division guard fires as an arithmetic error.
	_, err := AddLiquidity(0, 4000, 2000, 100, 200, 0)
	if !errors.Is(err, fpmath.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestAddLiquidity_LargeReserves(t *testing.T) {
	// amountA * lpSupply far exceeds 64 bits; the wide intermediate must
	// carry it.
	reserve := uint64(math.MaxUint64 / 2)
	supply := uint64(math.MaxUint64 / 2)
	minted, err := AddLiquidity(reserve, reserve, supply, 1000, 1000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if minted != 1000 {
		t.Errorf("expected 1000, got %d", minted)
	}
}

// --- Remove liquidity ---

func TestRemoveLiquidity_Proportional(t *testing.T) {
	a, b, err := RemoveLiquidity(1000, 4000, 2000, 500, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != 250 || b != 1000 {
		t.Errorf("expected (250, 1000), got (%d, %d)", a, b)
	}
}

func TestRemoveLiquidity_ZeroSupply(t *testing.T) {
	_, _, err := RemoveLiquidity(1000, 4000, 0, 500, 0, 0)
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestRemoveLiquidity_SlippageOnEitherSide(t *testing.T) {
	if _, _, err := RemoveLiquidity(1000, 4000, 2000, 500, 251, 0); !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("expected ErrSlippageExceeded on side A, got %v", err)
	}
	if _, _, err := RemoveLiquidity(1000, 4000, 2000, 500, 0, 1001); !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("expected ErrSlippageExceeded on side B, got %v", err)
	}
}

func TestRemoveLiquidity_FloorsDivision(t *testing.T) {
	// 1 LP of 3 total against reserve 10: floor(10/3) = 3.
	a, b, err := RemoveLiquidity(10, 10, 3, 1, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != 3 || b != 3 {
		t.Errorf("expected (3, 3), got (%d, %d)", a, b)
	}
}

// --- Round trip ---

func TestAddThenRemove_NeverProfits(t *testing.T) {
	// Depositing then withdrawing the minted shares must not return more
	// than was deposited (flooring works against the provider).
	reserveA, reserveB := uint64(1000), uint64(4000)
	supply := uint64(2000)
	amountA, amountB := uint64(333), uint64(1333)

	minted, err := AddLiquidity(reserveA, reserveB, supply, amountA, amountB, 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	outA, outB, err := RemoveLiquidity(reserveA+amountA, reserveB+amountB, supply+minted, minted, 0, 0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if outA > amountA || outB > amountB {
		t.Errorf("round trip profited: in (%d,%d) out (%d,%d)", amountA, amountB, outA, outB)
	}
}
