package perp

import (
	"errors"
	"testing"
	"time"

	"github.com/parallaxfi/dex-engine/internal/model"
)

// testMarket returns a market with 5% initial / 2.5% maintenance margin
// and a 1% liquidation fee.
func testMarket() *model.PerpetualMarket {
	return &model.PerpetualMarket{
		ID:                     "market-1",
		Symbol:                 "PERP-BTC-USDC",
		InitialMarginRatio:     500,
		MaintenanceMarginRatio: 250,
		LiquidationFeeBps:      100,
	}
}

func testPosition(size int64, entryPrice, collateral uint64) *model.Position {
	return &model.Position{
		ID:         "pos-1",
		MarketID:   "market-1",
		Owner:      "alice",
		Size:       size,
		EntryPrice: entryPrice,
		Collateral: collateral,
		Leverage:   10,
	}
}

// --- Market configuration ---

func TestValidateMarginRatios(t *testing.T) {
	if err := ValidateMarginRatios(500, 250); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, tt := range []struct{ initial, maintenance uint64 }{
		{500, 500}, {250, 500}, {0, 0},
	} {
		if err := ValidateMarginRatios(tt.initial, tt.maintenance); !errors.Is(err, ErrInvalidMarginRatios) {
			t.Errorf("ValidateMarginRatios(%d,%d) = %v, want ErrInvalidMarginRatios",
				tt.initial, tt.maintenance, err)
		}
	}
}

// --- Open validation ---

func TestQuoteOpen_ParameterValidation(t *testing.T) {
	m := testMarket()
	price := uint64(5000)

	if _, err := QuoteOpen(m, price, 0, 1000, 10, 1000); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("size 0: got %v", err)
	}
	if _, err := QuoteOpen(m, price, 100, 0, 10, 1000); !errors.Is(err, ErrInvalidCollateral) {
		t.Errorf("collateral 0: got %v", err)
	}
	if _, err := QuoteOpen(m, price, 100, 100_000, 0, 1000); !errors.Is(err, ErrInvalidLeverage) {
		t.Errorf("leverage 0: got %v", err)
	}
	if _, err := QuoteOpen(m, price, 100, 100_000, 21, 1000); !errors.Is(err, ErrInvalidLeverage) {
		t.Errorf("leverage 21: got %v", err)
	}
	if _, err := QuoteOpen(m, price, 100, 100_000, 1, 1000); err != nil {
		t.Errorf("leverage 1 should pass: %v", err)
	}
	if _, err := QuoteOpen(m, price, 100, 100_000, 20, 1000); err != nil {
		t.Errorf("leverage 20 should pass: %v", err)
	}
}

func TestQuoteOpen_MarginRequirement(t *testing.T) {
	m := testMarket()
	// size 100 @ 5000 -> notional 500000, initial margin 25000.
	// At leverage 10 the collateral floor is 2500.
	q, err := QuoteOpen(m, 5000, 100, 2500, 10, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Notional != 500_000 || q.RequiredMargin != 25_000 {
		t.Errorf("quote = %+v", q)
	}

	if _, err := QuoteOpen(m, 5000, 100, 2499, 10, 1000); !errors.Is(err, ErrInsufficientCollateral) {
		t.Errorf("expected ErrInsufficientCollateral, got %v", err)
	}

	// Higher leverage relaxes the requirement.
	if _, err := QuoteOpen(m, 5000, 100, 1250, 20, 1000); err != nil {
		t.Errorf("leverage 20 should halve the floor: %v", err)
	}
}

func TestQuoteOpen_ShortSide(t *testing.T) {
	m := testMarket()
	q, err := QuoteOpen(m, 5000, -100, 2500, 10, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Notional != 500_000 {
		t.Errorf("short notional should use |size|, got %d", q.Notional)
	}
}

// --- Price impact ---

func TestPriceImpact(t *testing.T) {
	tests := []struct {
		size         int64
		openInterest uint64
		want         uint64
	}{
		{100, 0, 0},        // fresh market: no book to move
		{100, 10_000, 100}, // 1%
		{100, 1_000, 1000}, // 10% cap
		{100, 100, 1000},   // would be 100%, capped
		{-100, 10_000, 100},
	}
	for _, tt := range tests {
		if got := PriceImpact(tt.size, tt.openInterest); got != tt.want {
			t.Errorf("PriceImpact(%d,%d) = %d, want %d", tt.size, tt.openInterest, got, tt.want)
		}
	}
}

func TestQuoteOpen_PriceImpactTooHigh(t *testing.T) {
	m := testMarket()
	m.OpenInterest = 10_000
	// size 100 against OI 10000 -> 100 bps impact.
	if _, err := QuoteOpen(m, 5000, 100, 100_000, 10, 99); !errors.Is(err, ErrPriceImpactTooHigh) {
		t.Errorf("expected ErrPriceImpactTooHigh, got %v", err)
	}
	if _, err := QuoteOpen(m, 5000, 100, 100_000, 10, 100); err != nil {
		t.Errorf("impact equal to tolerance should pass: %v", err)
	}
}

// --- Aggregates ---

func TestAggregateInvariant_OpenCloseSequence(t *testing.T) {
	m := testMarket()
	check := func() {
		t.Helper()
		if m.OpenInterest != m.TotalLong+m.TotalShort {
			t.Fatalf("invariant broken: oi=%d long=%d short=%d",
				m.OpenInterest, m.TotalLong, m.TotalShort)
		}
	}

	for _, size := range []int64{100, -40, 250, -10} {
		if err := ApplyOpen(m, size); err != nil {
			t.Fatalf("ApplyOpen(%d): %v", size, err)
		}
		check()
	}
	if m.TotalLong != 350 || m.TotalShort != 50 || m.OpenInterest != 400 {
		t.Fatalf("aggregates = long %d short %d oi %d", m.TotalLong, m.TotalShort, m.OpenInterest)
	}

	for _, size := range []int64{-40, 100, -10, 250} {
		if err := ApplyClose(m, size); err != nil {
			t.Fatalf("ApplyClose(%d): %v", size, err)
		}
		check()
	}
	if m.OpenInterest != 0 {
		t.Errorf("expected flat market, oi=%d", m.OpenInterest)
	}
}

func TestApplyClose_Underflow(t *testing.T) {
	m := testMarket()
	if err := ApplyClose(m, 100); err == nil {
		t.Error("closing against empty aggregates should fail")
	}
}

// --- PnL and funding helpers ---

func TestPnLMagnitude(t *testing.T) {
	tests := []struct {
		name         string
		size         int64
		entry, exit  uint64
		wantMag      uint64
		wantIsProfit bool
	}{
		{"long up", 100, 5000, 5100, 10_000, true},
		{"long down", 100, 5000, 4900, 10_000, false},
		{"long flat", 100, 5000, 5000, 0, true},
		{"short down", -100, 5000, 4900, 10_000, true},
		{"short up", -100, 5000, 5100, 10_000, false},
		{"short flat", -100, 5000, 5000, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mag, isProfit, err := PnLMagnitude(tt.size, tt.entry, tt.exit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mag != tt.wantMag || isProfit != tt.wantIsProfit {
				t.Errorf("got (%d, %v), want (%d, %v)", mag, isProfit, tt.wantMag, tt.wantIsProfit)
			}
		})
	}
}

func TestFundingPayment(t *testing.T) {
	// Index only moves up in practice: longs pay, shorts receive.
	pay, received := FundingPayment(100, 100, 165)
	if pay != 65 || received {
		t.Errorf("long with rising index should pay 65, got (%d, %v)", pay, received)
	}
	pay, received = FundingPayment(-100, 100, 165)
	if pay != 65 || !received {
		t.Errorf("short with rising index should receive 65, got (%d, %v)", pay, received)
	}
	pay, received = FundingPayment(100, 100, 100)
	if pay != 0 || received {
		t.Errorf("unchanged index should pay nothing, got (%d, %v)", pay, received)
	}
}

// --- Close settlement ---

func TestQuoteClose_ProfitAddsLossSubtracts(t *testing.T) {
	m := testMarket()
	p := testPosition(100, 5000, 20_000)

	q, err := QuoteClose(m, p, 5100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Settlement != 30_000 || !q.IsProfit {
		t.Errorf("profit close: %+v", q)
	}

	q, err = QuoteClose(m, p, 4900, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Settlement != 10_000 || q.IsProfit {
		t.Errorf("loss close: %+v", q)
	}
}

func TestQuoteClose_LossClampsToZero(t *testing.T) {
	m := testMarket()
	p := testPosition(100, 5000, 5_000)
	// Loss magnitude 10000 exceeds collateral 5000: settlement zeroes.
	q, err := QuoteClose(m, p, 4900, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Settlement != 0 {
		t.Errorf("expected full collateral loss, got %d", q.Settlement)
	}
}

func TestQuoteClose_FundingApplied(t *testing.T) {
	m := testMarket()
	m.FundingIndex = 165
	p := testPosition(100, 5000, 20_000)
	p.LastFundingIndex = 100

	// Long pays funding 65 on top of flat PnL.
	q, err := QuoteClose(m, p, 5000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Settlement != 19_935 || q.Funding != 65 || q.FundingReceived {
		t.Errorf("long funding close: %+v", q)
	}

	// Short receives it.
	p.Size = -100
	q, err = QuoteClose(m, p, 5000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Settlement != 20_065 || !q.FundingReceived {
		t.Errorf("short funding close: %+v", q)
	}
}

func TestQuoteClose_UnaffordableFundingSkipped(t *testing.T) {
	// PnL wipes the collateral; the funding debit is unaffordable and is
	// skipped. No error, no underflow.
	m := testMarket()
	m.FundingIndex = 200
	p := testPosition(100, 5000, 5_000)
	p.LastFundingIndex = 0

	q, err := QuoteClose(m, p, 4900, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Settlement != 0 {
		t.Errorf("expected 0, got %d", q.Settlement)
	}
}

func TestQuoteClose_Slippage(t *testing.T) {
	m := testMarket()
	p := testPosition(100, 5000, 20_000)
	if _, err := QuoteClose(m, p, 5000, 20_001); !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("expected ErrSlippageExceeded, got %v", err)
	}
	if _, err := QuoteClose(m, p, 5000, 20_000); err != nil {
		t.Errorf("settlement equal to minimum should pass: %v", err)
	}
}

// --- Liquidation ---

func TestQuoteLiquidation_Eligible(t *testing.T) {
	m := testMarket()
	// size 100 entered at 5000 with collateral 11000; price drops to 4900:
	// deduction 10000 leaves 1000 remaining against notional 490000 ->
	// margin ratio 20 bps < 250 maintenance. Fee 1% of notional = 4900
	// exceeds remaining 1000 -> fee failure.
	p := testPosition(100, 5000, 11_000)
	_, err := QuoteLiquidation(m, p, 4900)
	if !errors.Is(err, ErrInsufficientCollateralForLiquidation) {
		t.Fatalf("expected fee failure, got %v", err)
	}

	// With a smaller fee the liquidation goes through.
	m.LiquidationFeeBps = 1 // 0.01% -> fee 49
	q, err := QuoteLiquidation(m, p, 4900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.RemainingCollateral != 1_000 || q.MarginRatio != 20 || q.Fee != 49 || q.Residual != 951 {
		t.Errorf("quote = %+v", q)
	}
}

func TestQuoteLiquidation_HealthyPositionRefused(t *testing.T) {
	m := testMarket()
	// Collateral 50000 against notional 490000 after a 10000 deduction
	// leaves 40000 -> 816 bps, comfortably above 250.
	p := testPosition(100, 5000, 50_000)
	if _, err := QuoteLiquidation(m, p, 4900); !errors.Is(err, ErrCannotLiquidate) {
		t.Errorf("expected ErrCannotLiquidate, got %v", err)
	}
}

func TestQuoteLiquidation_IgnoresPnLDirection(t *testing.T) {
	// A profitable long is still valued as if it had lost: price rose
	// from 5000 to 5100 yet the 10000 magnitude is deducted. See the
	// package comment.
	m := testMarket()
	m.LiquidationFeeBps = 1
	p := testPosition(100, 5000, 11_000)

	q, err := QuoteLiquidation(m, p, 5100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.RemainingCollateral != 1_000 {
		t.Errorf("profit ignored: remaining should be 1000, got %d", q.RemainingCollateral)
	}
}

// --- Funding updater ---

func TestUpdateFunding_Reference(t *testing.T) {
	m := testMarket()
	m.TotalLong, m.TotalShort = 1000, 400
	m.OpenInterest = 1400

	now := time.Unix(1_700_000_000, 0).UTC()
	updated, err := UpdateFunding(m, now)
	if err != nil || !updated {
		t.Fatalf("updated=%v err=%v", updated, err)
	}
	// imbalance 600*10000/1000 = 6000 -> rate 5 + 60 = 65, longs pay.
	if m.FundingRate != 65 {
		t.Errorf("expected rate +65, got %d", m.FundingRate)
	}
	if m.FundingIndex != 65 {
		t.Errorf("expected index 65, got %d", m.FundingIndex)
	}
	if !m.LastFundingTime.Equal(now) {
		t.Errorf("last funding time not set")
	}
}

func TestUpdateFunding_ShortHeavySignFlips(t *testing.T) {
	m := testMarket()
	m.TotalLong, m.TotalShort = 400, 1000
	m.FundingIndex = 65

	if _, err := UpdateFunding(m, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.FundingRate != -65 {
		t.Errorf("expected rate -65, got %d", m.FundingRate)
	}
	// Index accumulates the magnitude regardless of sign.
	if m.FundingIndex != 130 {
		t.Errorf("index must remain monotone: expected 130, got %d", m.FundingIndex)
	}
}

func TestUpdateFunding_BalancedBook(t *testing.T) {
	m := testMarket()
	m.TotalLong, m.TotalShort = 500, 500

	if _, err := UpdateFunding(m, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Zero imbalance still carries the 5 bps base rate; a balanced book
	// breaks the tie to the negative side.
	if m.FundingRate != -5 || m.FundingIndex != 5 {
		t.Errorf("rate=%d index=%d", m.FundingRate, m.FundingIndex)
	}
}

func TestUpdateFunding_EmptyMarketNoOp(t *testing.T) {
	m := testMarket()
	before := *m
	updated, err := UpdateFunding(m, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated {
		t.Error("empty market should be a no-op")
	}
	if *m != before {
		t.Error("empty market must not be mutated")
	}
}
