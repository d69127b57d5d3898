// Package model defines the core domain entities shared across the engine.
// Token amounts, reserves, and prices are unsigned 64-bit base units;
// position size is signed (positive = long, negative = short). Prices carry
// 2 implied decimals.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pool is a constant-product AMM pool. Fee fields are immutable after
// creation; reserves live in the ledger accounts named here, not in the
// entity itself.
type Pool struct {
	ID             string    `json:"id" db:"id"`
	Symbol         string    `json:"symbol" db:"symbol"` // AMM-{BASE}-{QUOTE}
	TokenAMint     string    `json:"token_a_mint" db:"token_a_mint"`
	TokenBMint     string    `json:"token_b_mint" db:"token_b_mint"`
	TokenAReserve  string    `json:"token_a_reserve" db:"token_a_reserve"` // ledger account
	TokenBReserve  string    `json:"token_b_reserve" db:"token_b_reserve"` // ledger account
	LPMint         string    `json:"lp_mint" db:"lp_mint"`
	FeeNumerator   uint64    `json:"fee_numerator" db:"fee_numerator"`
	FeeDenominator uint64    `json:"fee_denominator" db:"fee_denominator"`
	Authority      string    `json:"authority" db:"authority"`
	AuthorityBump  uint8     `json:"authority_bump" db:"authority_bump"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PerpetualMarket holds a perpetual futures market's configuration and
// aggregate exposure. Margin ratios and the liquidation fee are in basis
// points. Invariant at every quiescent point:
// OpenInterest == TotalLong + TotalShort.
type PerpetualMarket struct {
	ID                     string    `json:"id" db:"id"`
	Symbol                 string    `json:"symbol" db:"symbol"` // PERP-{BASE}-{QUOTE}
	BaseMint               string    `json:"base_mint" db:"base_mint"`
	QuoteMint              string    `json:"quote_mint" db:"quote_mint"`
	BaseVault              string    `json:"base_vault" db:"base_vault"`   // ledger account
	QuoteVault             string    `json:"quote_vault" db:"quote_vault"` // ledger account
	Authority              string    `json:"authority" db:"authority"`
	AuthorityBump          uint8     `json:"authority_bump" db:"authority_bump"`
	InitialMarginRatio     uint64    `json:"initial_margin_ratio" db:"initial_margin_ratio"`
	MaintenanceMarginRatio uint64    `json:"maintenance_margin_ratio" db:"maintenance_margin_ratio"`
	LiquidationFeeBps      uint64    `json:"liquidation_fee_bps" db:"liquidation_fee_bps"`
	TotalLong              uint64    `json:"total_long" db:"total_long"`
	TotalShort             uint64    `json:"total_short" db:"total_short"`
	OpenInterest           uint64    `json:"open_interest" db:"open_interest"`
	FundingRate            int64     `json:"funding_rate" db:"funding_rate"`
	FundingIndex           uint64    `json:"funding_index" db:"funding_index"`
	LastFundingTime        time.Time `json:"last_funding_time" db:"last_funding_time"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
}

// Position is one leveraged position. Created at open, deleted at close or
// liquidation; there is no partial reduce or reopen.
type Position struct {
	ID               string    `json:"id" db:"id"`
	MarketID         string    `json:"market_id" db:"market_id"`
	Owner            string    `json:"owner" db:"owner"`
	Size             int64     `json:"size" db:"size"` // +long / -short
	EntryPrice       uint64    `json:"entry_price" db:"entry_price"`
	Collateral       uint64    `json:"collateral" db:"collateral"`
	Leverage         uint8     `json:"leverage" db:"leverage"`
	LastFundingIndex uint64    `json:"last_funding_index" db:"last_funding_index"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// AbsSize returns |size| as an unsigned amount.
func (p *Position) AbsSize() uint64 {
	if p.Size < 0 {
		return uint64(-p.Size)
	}
	return uint64(p.Size)
}

// DisplayNotional returns |size| * price in quote units as a decimal with
// the price's 2 implied decimals shifted in. Display only; the engine
// computes notional through checked integer math.
func (p *Position) DisplayNotional(price uint64) decimal.Decimal {
	return decimal.NewFromUint64(p.AbsSize()).Mul(decimal.New(int64(price), -2))
}

// Event kinds recorded in the immutable trade log.
const (
	EventSwap            = "swap"
	EventAddLiquidity    = "add_liquidity"
	EventRemoveLiquidity = "remove_liquidity"
	EventOpenPosition    = "open_position"
	EventClosePosition   = "close_position"
	EventLiquidation     = "liquidation"
	EventFundingUpdate   = "funding_update"
)

// TradeEvent is an immutable record of one executed operation. Once
// written, events are never modified or deleted.
type TradeEvent struct {
	ID           string    `json:"id" db:"id"`
	Kind         string    `json:"kind" db:"kind"`
	InstrumentID string    `json:"instrument_id" db:"instrument_id"` // pool or market ID
	Account      string    `json:"account" db:"account"`             // acting account, if any
	AmountIn     uint64    `json:"amount_in" db:"amount_in"`
	AmountOut    uint64    `json:"amount_out" db:"amount_out"`
	Size         int64     `json:"size" db:"size"` // position events only
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}
