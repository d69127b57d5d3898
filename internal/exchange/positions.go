package exchange

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parallaxfi/dex-engine/internal/contract"
	"github.com/parallaxfi/dex-engine/internal/ledger"
	"github.com/parallaxfi/dex-engine/internal/metrics"
	"github.com/parallaxfi/dex-engine/internal/model"
	"github.com/parallaxfi/dex-engine/internal/oracle"
	"github.com/parallaxfi/dex-engine/internal/perp"
)

// CreateMarketRequest is the JSON body for perpetual market creation.
// Margin ratios and the liquidation fee are in basis points.
type CreateMarketRequest struct {
	Symbol                 string `json:"symbol"` // PERP-{BASE}-{QUOTE}
	BaseMint               string `json:"base_mint"`
	QuoteMint              string `json:"quote_mint"`
	InitialMarginRatio     uint64 `json:"initial_margin_ratio"`
	MaintenanceMarginRatio uint64 `json:"maintenance_margin_ratio"`
	LiquidationFeeBps      uint64 `json:"liquidation_fee_bps"`
}

// OpenPositionRequest is the JSON body for POST /markets/{marketID}/positions.
type OpenPositionRequest struct {
	Owner          string `json:"owner"`
	Size           int64  `json:"size"` // +long / -short
	Collateral     uint64 `json:"collateral"`
	Leverage       uint8  `json:"leverage"`
	MaxPriceImpact uint64 `json:"max_price_impact"` // bps
}

// OpenPositionResponse is returned from a successful open.
type OpenPositionResponse struct {
	Position    model.Position `json:"position"`
	Notional    uint64         `json:"notional"`
	PriceImpact uint64         `json:"price_impact"`
	EntryPrice  uint64         `json:"entry_price"`
}

// ClosePositionRequest is the JSON body for POST /positions/{positionID}/close.
type ClosePositionRequest struct {
	Owner          string `json:"owner"`
	MinimumReceive uint64 `json:"minimum_receive"`
}

// ClosePositionResponse is returned from a successful close.
type ClosePositionResponse struct {
	PositionID      string `json:"position_id"`
	Settlement      uint64 `json:"settlement"`
	PnL             uint64 `json:"pnl"`
	IsProfit        bool   `json:"is_profit"`
	Funding         uint64 `json:"funding"`
	FundingReceived bool   `json:"funding_received"`
	ExitPrice       uint64 `json:"exit_price"`
}

// LiquidateRequest is the JSON body for POST /positions/{positionID}/liquidate.
type LiquidateRequest struct {
	Liquidator string `json:"liquidator"`
}

// LiquidateResponse is returned from a successful liquidation.
type LiquidateResponse struct {
	PositionID  string `json:"position_id"`
	MarginRatio uint64 `json:"margin_ratio"` // bps
	Fee         uint64 `json:"fee"`
	Residual    uint64 `json:"residual"`
	Price       uint64 `json:"price"`
}

// CreateMarket handles POST /api/v1/markets.
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := contract.ParsePerpSymbol(req.Symbol); err != nil {
		writeEngineError(w, err)
		return
	}
	if req.BaseMint == "" || req.QuoteMint == "" || req.BaseMint == req.QuoteMint {
		writeError(w, "mints must be distinct and non-empty", http.StatusBadRequest)
		return
	}
	if err := perp.ValidateMarginRatios(req.InitialMarginRatio, req.MaintenanceMarginRatio); err != nil {
		writeEngineError(w, err)
		return
	}
	if req.LiquidationFeeBps >= perp.BpsDenominator {
		writeError(w, "liquidation_fee_bps must be below 10000", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	id := uuid.New().String()
	m := &model.PerpetualMarket{
		ID:                     id,
		Symbol:                 req.Symbol,
		BaseMint:               req.BaseMint,
		QuoteMint:              req.QuoteMint,
		BaseVault:              marketBaseVault(id),
		QuoteVault:             marketQuoteVault(id),
		Authority:              engineAuthority,
		AuthorityBump:          255,
		InitialMarginRatio:     req.InitialMarginRatio,
		MaintenanceMarginRatio: req.MaintenanceMarginRatio,
		LiquidationFeeBps:      req.LiquidationFeeBps,
		LastFundingTime:        now,
		CreatedAt:              now,
	}

	if err := s.store.CreateMarket(r.Context(), m); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("perp market created",
		"id", m.ID,
		"symbol", m.Symbol,
		"initial_margin_bps", m.InitialMarginRatio,
		"maintenance_margin_bps", m.MaintenanceMarginRatio,
	)

	writeJSON(w, http.StatusCreated, m)
}

// GetMarket handles GET /api/v1/markets/{marketID}.
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMarkets handles GET /api/v1/markets.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.PerpetualMarket{}
	}
	writeJSON(w, http.StatusOK, markets)
}

// OpenPosition handles POST /api/v1/markets/{marketID}/positions.
func (s *Service) OpenPosition(w http.ResponseWriter, r *http.Request) {
	var req OpenPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		writeError(w, "owner is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, chi.URLParam(r, "marketID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	price, err := s.oracle.Price(ctx, m.Symbol)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	quote, err := perp.QuoteOpen(m, price, req.Size, req.Collateral, req.Leverage, req.MaxPriceImpact)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	existing, err := s.store.ListPositionsByOwner(ctx, req.Owner)
	if err != nil {
		writeError(w, "failed to check position limits", http.StatusInternalServerError)
		return
	}
	if err := s.limiter.CheckLimit(quote.Notional, existing); err != nil {
		metrics.RiskLimitRejections.Inc()
		writeEngineError(w, err)
		return
	}

	// Collateral moves into the market vault before any state lands; if
	// the transfer fails nothing has changed.
	err = s.ledger.Apply(ctx,
		ledger.Transfer(tokenAccount(req.Owner, m.QuoteMint), m.QuoteVault, req.Collateral),
	)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := perp.ApplyOpen(m, req.Size); err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		writeError(w, "failed to update market", http.StatusInternalServerError)
		return
	}

	p := perp.NewPosition(uuid.New().String(), m, req.Owner, req.Size, price, req.Collateral, req.Leverage, time.Now().UTC())
	if err := s.store.CreatePosition(ctx, p); err != nil {
		writeError(w, "failed to record position", http.StatusInternalServerError)
		return
	}

	slog.Info("position opened",
		"position", p.ID,
		"market", m.Symbol,
		"owner", req.Owner,
		"size", req.Size,
		"entry_price", price,
		"collateral", req.Collateral,
		"leverage", req.Leverage,
	)
	metrics.PositionsTotal.WithLabelValues("open").Inc()
	metrics.OpenInterest.WithLabelValues(m.Symbol).Set(float64(m.OpenInterest))

	s.recordEvent(r, &model.TradeEvent{
		ID:           uuid.New().String(),
		Kind:         model.EventOpenPosition,
		InstrumentID: m.ID,
		Account:      req.Owner,
		AmountIn:     req.Collateral,
		Size:         req.Size,
		Timestamp:    time.Now().UTC(),
	}, WSMessage{
		Type:         model.EventOpenPosition,
		InstrumentID: m.ID,
		Symbol:       m.Symbol,
		Account:      req.Owner,
		Size:         strconv.FormatInt(req.Size, 10),
		Price:        strconv.FormatUint(price, 10),
	})

	writeJSON(w, http.StatusCreated, OpenPositionResponse{
		Position:    *p,
		Notional:    quote.Notional,
		PriceImpact: quote.PriceImpact,
		EntryPrice:  price,
	})
}

// ClosePosition handles POST /api/v1/positions/{positionID}/close.
// Only the position owner may close.
func (s *Service) ClosePosition(w http.ResponseWriter, r *http.Request) {
	var req ClosePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetPosition(ctx, chi.URLParam(r, "positionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if req.Owner != p.Owner {
		writeError(w, "only the position owner may close", http.StatusForbidden)
		return
	}

	m, err := s.store.GetMarket(ctx, p.MarketID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	price, err := s.oracle.Price(ctx, m.Symbol)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	quote, err := perp.QuoteClose(m, p, price, req.MinimumReceive)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if quote.Settlement > 0 {
		err = s.ledger.Apply(ctx,
			ledger.Transfer(m.QuoteVault, tokenAccount(p.Owner, m.QuoteMint), quote.Settlement),
		)
		if err != nil {
			writeEngineError(w, err)
			return
		}
	}

	if err := perp.ApplyClose(m, p.Size); err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		writeError(w, "failed to update market", http.StatusInternalServerError)
		return
	}
	if err := s.store.DeletePosition(ctx, p.ID); err != nil {
		writeError(w, "failed to remove position", http.StatusInternalServerError)
		return
	}

	slog.Info("position closed",
		"position", p.ID,
		"market", m.Symbol,
		"owner", p.Owner,
		"settlement", quote.Settlement,
		"pnl", quote.PnL,
		"is_profit", quote.IsProfit,
		"exit_price", price,
	)
	metrics.PositionsTotal.WithLabelValues("close").Inc()
	metrics.OpenInterest.WithLabelValues(m.Symbol).Set(float64(m.OpenInterest))

	s.recordEvent(r, &model.TradeEvent{
		ID:           uuid.New().String(),
		Kind:         model.EventClosePosition,
		InstrumentID: m.ID,
		Account:      p.Owner,
		AmountOut:    quote.Settlement,
		Size:         p.Size,
		Timestamp:    time.Now().UTC(),
	}, WSMessage{
		Type:         model.EventClosePosition,
		InstrumentID: m.ID,
		Symbol:       m.Symbol,
		Account:      p.Owner,
		Size:         strconv.FormatInt(p.Size, 10),
		AmountOut:    strconv.FormatUint(quote.Settlement, 10),
		Price:        strconv.FormatUint(price, 10),
	})

	writeJSON(w, http.StatusOK, ClosePositionResponse{
		PositionID:      p.ID,
		Settlement:      quote.Settlement,
		PnL:             quote.PnL,
		IsProfit:        quote.IsProfit,
		Funding:         quote.Funding,
		FundingReceived: quote.FundingReceived,
		ExitPrice:       price,
	})
}

// LiquidatePosition handles POST /api/v1/positions/{positionID}/liquidate.
// Any account may liquidate an under-margined position and collect the fee.
// Residual collateral past the fee stays in the market vault.
func (s *Service) LiquidatePosition(w http.ResponseWriter, r *http.Request) {
	var req LiquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Liquidator == "" {
		writeError(w, "liquidator is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetPosition(ctx, chi.URLParam(r, "positionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	m, err := s.store.GetMarket(ctx, p.MarketID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	price, err := s.oracle.Price(ctx, m.Symbol)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	quote, err := perp.QuoteLiquidation(m, p, price)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if quote.Fee > 0 {
		err = s.ledger.Apply(ctx,
			ledger.Transfer(m.QuoteVault, tokenAccount(req.Liquidator, m.QuoteMint), quote.Fee),
		)
		if err != nil {
			writeEngineError(w, err)
			return
		}
	}

	if err := perp.ApplyClose(m, p.Size); err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		writeError(w, "failed to update market", http.StatusInternalServerError)
		return
	}
	if err := s.store.DeletePosition(ctx, p.ID); err != nil {
		writeError(w, "failed to remove position", http.StatusInternalServerError)
		return
	}

	slog.Info("position liquidated",
		"position", p.ID,
		"market", m.Symbol,
		"owner", p.Owner,
		"liquidator", req.Liquidator,
		"margin_ratio_bps", quote.MarginRatio,
		"fee", quote.Fee,
		"residual", quote.Residual,
		"price", price,
	)
	metrics.PositionsTotal.WithLabelValues("liquidate").Inc()
	metrics.OpenInterest.WithLabelValues(m.Symbol).Set(float64(m.OpenInterest))

	s.recordEvent(r, &model.TradeEvent{
		ID:           uuid.New().String(),
		Kind:         model.EventLiquidation,
		InstrumentID: m.ID,
		Account:      req.Liquidator,
		AmountOut:    quote.Fee,
		Size:         p.Size,
		Timestamp:    time.Now().UTC(),
	}, WSMessage{
		Type:         model.EventLiquidation,
		InstrumentID: m.ID,
		Symbol:       m.Symbol,
		Account:      p.Owner,
		Size:         strconv.FormatInt(p.Size, 10),
		AmountOut:    strconv.FormatUint(quote.Fee, 10),
		Price:        strconv.FormatUint(price, 10),
	})

	writeJSON(w, http.StatusOK, LiquidateResponse{
		PositionID:  p.ID,
		MarginRatio: quote.MarginRatio,
		Fee:         quote.Fee,
		Residual:    quote.Residual,
		Price:       price,
	})
}

// positionView decorates a position with current-price display fields.
type positionView struct {
	model.Position
	MarkPrice        uint64 `json:"mark_price,omitempty"`
	DisplayNotional  string `json:"display_notional,omitempty"`
	DisplayMarkPrice string `json:"display_mark_price,omitempty"`
}

func (s *Service) viewPosition(r *http.Request, p *model.Position, symbol string) positionView {
	v := positionView{Position: *p}
	if price, err := s.oracle.Price(r.Context(), symbol); err == nil {
		v.MarkPrice = price
		v.DisplayNotional = p.DisplayNotional(price).String()
		v.DisplayMarkPrice = oracle.FromFixed(price).String()
	}
	return v
}

// GetPosition handles GET /api/v1/positions/{positionID}.
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPosition(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	symbol := ""
	if m, err := s.store.GetMarket(r.Context(), p.MarketID); err == nil {
		symbol = m.Symbol
	}
	writeJSON(w, http.StatusOK, s.viewPosition(r, p, symbol))
}

// ListAccountPositions handles GET /api/v1/accounts/{account}/positions.
func (s *Service) ListAccountPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListPositionsByOwner(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, "failed to list positions", http.StatusInternalServerError)
		return
	}

	views := make([]positionView, 0, len(positions))
	symbols := make(map[string]string)
	for i := range positions {
		p := &positions[i]
		symbol, ok := symbols[p.MarketID]
		if !ok {
			if m, err := s.store.GetMarket(r.Context(), p.MarketID); err == nil {
				symbol = m.Symbol
			}
			symbols[p.MarketID] = symbol
		}
		views = append(views, s.viewPosition(r, p, symbol))
	}
	writeJSON(w, http.StatusOK, views)
}
