// Package contract handles instrument symbol parsing and validation.
// Pools trade under AMM-{BASE}-{QUOTE}, perpetual markets under
// PERP-{BASE}-{QUOTE}; legs are upper-case token codes.
package contract

import (
	"errors"
	"fmt"
	"regexp"
)

// Instrument kinds.
const (
	KindPool = "AMM"
	KindPerp = "PERP"
)

// symbolRegex matches: {AMM|PERP}-{BASE}-{QUOTE}
// Example: AMM-SOL-USDC, PERP-BTC-USDC
var symbolRegex = regexp.MustCompile(`^(AMM|PERP)-([A-Z0-9]{2,10})-([A-Z0-9]{2,10})$`)

var (
	ErrInvalidSymbol = errors.New("contract: invalid symbol format")
	ErrSameLegs      = errors.New("contract: base and quote must differ")
)

// Instrument is a parsed trading symbol.
type Instrument struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"` // AMM or PERP
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

// ParseSymbol parses and validates an instrument symbol.
func ParseSymbol(symbol string) (*Instrument, error) {
	matches := symbolRegex.FindStringSubmatch(symbol)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected AMM-{BASE}-{QUOTE} or PERP-{BASE}-{QUOTE})",
			ErrInvalidSymbol, symbol)
	}
	if matches[2] == matches[3] {
		return nil, fmt.Errorf("%w: %s", ErrSameLegs, symbol)
	}
	return &Instrument{
		Symbol: symbol,
		Kind:   matches[1],
		Base:   matches[2],
		Quote:  matches[3],
	}, nil
}

// ParsePoolSymbol parses a symbol and requires the AMM kind.
func ParsePoolSymbol(symbol string) (*Instrument, error) {
	inst, err := ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if inst.Kind != KindPool {
		return nil, fmt.Errorf("%w: %s is not an AMM symbol", ErrInvalidSymbol, symbol)
	}
	return inst, nil
}

// ParsePerpSymbol parses a symbol and requires the PERP kind.
func ParsePerpSymbol(symbol string) (*Instrument, error) {
	inst, err := ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if inst.Kind != KindPerp {
		return nil, fmt.Errorf("%w: %s is not a PERP symbol", ErrInvalidSymbol, symbol)
	}
	return inst, nil
}
