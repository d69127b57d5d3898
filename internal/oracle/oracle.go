// Package oracle defines the price source contract. Prices are unsigned
// fixed-point with 2 implied decimals (5000 = $50.00). Each engine
// operation reads the price exactly once; stale or missing prices are
// distinct failures, never silently substituted with a cached value.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable is returned when no price exists for a symbol.
	ErrUnavailable = errors.New("oracle: price unavailable")

	// ErrStale is returned when the last price is older than the feed's
	// max age.
	ErrStale = errors.New("oracle: price is stale")

	// ErrInvalidPrice is returned when a pushed price cannot be
	// represented as a non-negative 2-decimal fixed point.
	ErrInvalidPrice = errors.New("oracle: invalid price")
)

// PriceDecimals is the number of implied decimals in oracle prices.
const PriceDecimals = 2

// Oracle is the price source contract.
type Oracle interface {
	// Price returns the current fixed-point price for a market symbol.
	Price(ctx context.Context, symbol string) (uint64, error)
}

// Static always returns one fixed price. Useful for tests and local
// development.
type Static uint64

func (s Static) Price(context.Context, string) (uint64, error) {
	return uint64(s), nil
}

// ToFixed scales a decimal quote price to the oracle's fixed-point
// representation, flooring sub-cent precision.
func ToFixed(price decimal.Decimal) (uint64, error) {
	if price.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	shifted := price.Shift(PriceDecimals).Floor()
	if !shifted.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidPrice, price)
	}
	return shifted.BigInt().Uint64(), nil
}

// FromFixed renders a fixed-point price as a decimal for display.
func FromFixed(price uint64) decimal.Decimal {
	return decimal.NewFromUint64(price).Shift(-PriceDecimals)
}

type feedEntry struct {
	price     uint64
	updatedAt time.Time
}

// Feed is a pushed price feed with staleness enforcement. Prices arrive
// as decimals (the wire form of upstream quotes) and are scaled at the
// boundary.
type Feed struct {
	mu      sync.RWMutex
	prices  map[string]feedEntry
	maxAge  time.Duration
	nowFunc func() time.Time
}

// NewFeed creates a feed whose prices expire after maxAge.
func NewFeed(maxAge time.Duration) *Feed {
	return &Feed{
		prices:  make(map[string]feedEntry),
		maxAge:  maxAge,
		nowFunc: time.Now,
	}
}

// Push records a new price for a symbol.
func (f *Feed) Push(symbol string, price decimal.Decimal) error {
	fixed, err := ToFixed(price)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.prices[symbol] = feedEntry{price: fixed, updatedAt: f.nowFunc()}
	f.mu.Unlock()
	return nil
}

func (f *Feed) Price(_ context.Context, symbol string) (uint64, error) {
	f.mu.RLock()
	entry, ok := f.prices[symbol]
	f.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}
	if f.maxAge > 0 && f.nowFunc().Sub(entry.updatedAt) > f.maxAge {
		return 0, fmt.Errorf("%w: %s last updated %s", ErrStale, symbol, entry.updatedAt.Format(time.RFC3339))
	}
	return entry.price, nil
}
