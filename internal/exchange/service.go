// Package exchange provides the HTTP handlers and business logic for
// constant-product pools and perpetual futures markets: creating
// instruments, adding/removing liquidity, swapping, and the position
// lifecycle.
//
// All token amounts are unsigned 64-bit base units. Every mutating
// operation validates first with pure engine math, then commits its ledger
// legs as one atomic batch, then persists entity state. A failed
// validation or ledger batch leaves no partial effect.
package exchange

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/parallaxfi/dex-engine/internal/contract"
	"github.com/parallaxfi/dex-engine/internal/fpmath"
	"github.com/parallaxfi/dex-engine/internal/ledger"
	"github.com/parallaxfi/dex-engine/internal/metrics"
	"github.com/parallaxfi/dex-engine/internal/model"
	"github.com/parallaxfi/dex-engine/internal/oracle"
	"github.com/parallaxfi/dex-engine/internal/perp"
	"github.com/parallaxfi/dex-engine/internal/pool"
	"github.com/parallaxfi/dex-engine/internal/risk"
	"github.com/parallaxfi/dex-engine/internal/store"
	"github.com/parallaxfi/dex-engine/internal/swap"
)

// engineAuthority names the signing authority all pool and vault accounts
// are created under. The ledger only honors ops issued by the engine.
const engineAuthority = "engine"

// Service handles exchange operations. Uses a mutex for serialized
// execution of mutating operations (single-instance). For horizontal
// scaling, replace with distributed locking or database-level optimistic
// concurrency.
type Service struct {
	store   store.Store
	ledger  ledger.Ledger
	oracle  oracle.Oracle
	feed    *oracle.Feed // optional push endpoint; nil when prices are external
	limiter *risk.PositionLimiter
	mu      sync.Mutex
	wsHub   *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new exchange service. Pass nil for feed if prices
// are not pushed over HTTP, and nil for hub if WebSocket broadcasting is
// not needed.
func NewService(st store.Store, led ledger.Ledger, orc oracle.Oracle, feed *oracle.Feed, limiter *risk.PositionLimiter, hub *WSHub) *Service {
	return &Service{
		store:   st,
		ledger:  led,
		oracle:  orc,
		feed:    feed,
		limiter: limiter,
		wsHub:   hub,
	}
}

// Routes mounts all exchange endpoints on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/pools", s.CreatePool)
	r.Get("/pools", s.ListPools)
	r.Get("/pools/{poolID}", s.GetPool)
	r.Get("/pools/{poolID}/quote", s.QuoteSwap)
	r.Post("/pools/{poolID}/swap", s.ExecuteSwap)
	r.Post("/pools/{poolID}/liquidity", s.AddLiquidity)
	r.Post("/pools/{poolID}/liquidity/remove", s.RemoveLiquidity)

	r.Post("/markets", s.CreateMarket)
	r.Get("/markets", s.ListMarkets)
	r.Get("/markets/{marketID}", s.GetMarket)
	r.Post("/markets/{marketID}/positions", s.OpenPosition)
	r.Post("/markets/{marketID}/funding", s.TriggerFunding)

	r.Get("/positions/{positionID}", s.GetPosition)
	r.Post("/positions/{positionID}/close", s.ClosePosition)
	r.Post("/positions/{positionID}/liquidate", s.LiquidatePosition)
	r.Get("/accounts/{account}/positions", s.ListAccountPositions)

	r.Get("/instruments/{instrumentID}/events", s.ListTradeEvents)

	if s.feed != nil {
		r.Post("/oracle/prices", s.PushPrice)
	}
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}
}

// --- Account naming ---

// tokenAccount is the ledger account holding an owner's balance of a mint.
func tokenAccount(owner, mint string) string {
	return owner + ":" + mint
}

func poolReserveA(poolID string) string { return "pool:" + poolID + ":a" }
func poolReserveB(poolID string) string { return "pool:" + poolID + ":b" }
func poolLPMint(poolID string) string   { return "lp:" + poolID }

func marketBaseVault(marketID string) string  { return "market:" + marketID + ":base" }
func marketQuoteVault(marketID string) string { return "market:" + marketID + ":quote" }

// --- Request/Response types ---

// CreatePoolRequest is the JSON body for pool creation.
type CreatePoolRequest struct {
	Symbol         string `json:"symbol"` // AMM-{BASE}-{QUOTE}
	TokenAMint     string `json:"token_a_mint"`
	TokenBMint     string `json:"token_b_mint"`
	FeeNumerator   uint64 `json:"fee_numerator"`
	FeeDenominator uint64 `json:"fee_denominator"`
}

// PoolResponse is a pool snapshot with live reserve balances and LP supply.
type PoolResponse struct {
	model.Pool
	ReserveA uint64 `json:"reserve_a"`
	ReserveB uint64 `json:"reserve_b"`
	LPSupply uint64 `json:"lp_supply"`
}

// LiquidityRequest is the JSON body for adding liquidity.
type LiquidityRequest struct {
	Account     string `json:"account"`
	AmountA     uint64 `json:"amount_a"`
	AmountB     uint64 `json:"amount_b"`
	MinLPTokens uint64 `json:"min_lp_tokens"`
}

// LiquidityResponse is returned from add-liquidity.
type LiquidityResponse struct {
	PoolID   string `json:"pool_id"`
	AmountA  uint64 `json:"amount_a"`
	AmountB  uint64 `json:"amount_b"`
	LPMinted uint64 `json:"lp_minted"`
}

// WithdrawRequest is the JSON body for removing liquidity.
type WithdrawRequest struct {
	Account    string `json:"account"`
	LPAmount   uint64 `json:"lp_amount"`
	MinAmountA uint64 `json:"min_amount_a"`
	MinAmountB uint64 `json:"min_amount_b"`
}

// WithdrawResponse is returned from remove-liquidity.
type WithdrawResponse struct {
	PoolID   string `json:"pool_id"`
	AmountA  uint64 `json:"amount_a"`
	AmountB  uint64 `json:"amount_b"`
	LPBurned uint64 `json:"lp_burned"`
}

// SwapRequest is the JSON body for POST /pools/{poolID}/swap.
type SwapRequest struct {
	Account          string `json:"account"`
	Direction        string `json:"direction"` // "a_to_b" or "b_to_a"
	AmountIn         uint64 `json:"amount_in"`
	MinimumAmountOut uint64 `json:"minimum_amount_out"`
}

// SwapResponse is returned from POST /pools/{poolID}/swap.
type SwapResponse struct {
	PoolID    string `json:"pool_id"`
	Direction string `json:"direction"`
	AmountIn  uint64 `json:"amount_in"`
	AmountOut uint64 `json:"amount_out"`
}

// --- Error mapping ---

// errStatus maps engine sentinels onto HTTP statuses: missing entities are
// 404, business rejections are 409, arithmetic failures are 422.
func errStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, pool.ErrSlippageExceeded),
		errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, swap.ErrSlippageExceeded),
		errors.Is(err, perp.ErrInsufficientCollateral),
		errors.Is(err, perp.ErrPriceImpactTooHigh),
		errors.Is(err, perp.ErrSlippageExceeded),
		errors.Is(err, perp.ErrCannotLiquidate),
		errors.Is(err, perp.ErrInsufficientCollateralForLiquidation),
		errors.Is(err, risk.ErrPositionLimitExceeded),
		errors.Is(err, risk.ErrAccountLimitExceeded):
		return http.StatusConflict
	case errors.Is(err, fpmath.ErrOverflow),
		errors.Is(err, fpmath.ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pool.ErrInvalidFee),
		errors.Is(err, contract.ErrInvalidSymbol),
		errors.Is(err, contract.ErrSameLegs),
		errors.Is(err, perp.ErrInvalidSize),
		errors.Is(err, perp.ErrInvalidCollateral),
		errors.Is(err, perp.ErrInvalidLeverage),
		errors.Is(err, perp.ErrInvalidMarginRatios),
		errors.Is(err, oracle.ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, oracle.ErrUnavailable),
		errors.Is(err, oracle.ErrStale):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps an engine error to its status and writes it.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), errStatus(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// recordEvent persists a trade-log entry and broadcasts it. Both are best
// effort once the operation itself has committed.
func (s *Service) recordEvent(r *http.Request, e *model.TradeEvent, msg WSMessage) {
	if err := s.store.InsertTradeEvent(r.Context(), e); err != nil {
		slog.Error("trade event insert failed", "kind", e.Kind, "instrument", e.InstrumentID, "err", err)
	}
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

// --- Pool handlers ---

// CreatePool handles POST /api/v1/pools.
func (s *Service) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req CreatePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := contract.ParsePoolSymbol(req.Symbol); err != nil {
		writeEngineError(w, err)
		return
	}
	if req.TokenAMint == "" || req.TokenBMint == "" || req.TokenAMint == req.TokenBMint {
		writeError(w, "token mints must be distinct and non-empty", http.StatusBadRequest)
		return
	}
	if err := pool.ValidateFee(req.FeeNumerator, req.FeeDenominator); err != nil {
		writeEngineError(w, err)
		return
	}

	id := uuid.New().String()
	p := &model.Pool{
		ID:             id,
		Symbol:         req.Symbol,
		TokenAMint:     req.TokenAMint,
		TokenBMint:     req.TokenBMint,
		TokenAReserve:  poolReserveA(id),
		TokenBReserve:  poolReserveB(id),
		LPMint:         poolLPMint(id),
		FeeNumerator:   req.FeeNumerator,
		FeeDenominator: req.FeeDenominator,
		Authority:      engineAuthority,
		AuthorityBump:  255,
		CreatedAt:      time.Now().UTC(),
	}

	ctx := r.Context()
	if err := s.ledger.CreateMint(ctx, p.LPMint); err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.store.CreatePool(ctx, p); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("pool created",
		"id", p.ID,
		"symbol", p.Symbol,
		"fee", strconv.FormatUint(p.FeeNumerator, 10)+"/"+strconv.FormatUint(p.FeeDenominator, 10),
	)

	writeJSON(w, http.StatusCreated, p)
}

// poolSnapshot loads a pool plus its live reserves and LP supply.
func (s *Service) poolSnapshot(r *http.Request, id string) (*PoolResponse, error) {
	ctx := r.Context()
	p, err := s.store.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}
	reserveA, err := s.ledger.Balance(ctx, p.TokenAReserve)
	if err != nil {
		return nil, err
	}
	reserveB, err := s.ledger.Balance(ctx, p.TokenBReserve)
	if err != nil {
		return nil, err
	}
	supply, err := s.ledger.Supply(ctx, p.LPMint)
	if err != nil {
		return nil, err
	}
	return &PoolResponse{Pool: *p, ReserveA: reserveA, ReserveB: reserveB, LPSupply: supply}, nil
}

// GetPool handles GET /api/v1/pools/{poolID}.
func (s *Service) GetPool(w http.ResponseWriter, r *http.Request) {
	snap, err := s.poolSnapshot(r, chi.URLParam(r, "poolID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListPools handles GET /api/v1/pools.
func (s *Service) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.store.ListPools(r.Context())
	if err != nil {
		writeError(w, "failed to list pools", http.StatusInternalServerError)
		return
	}
	if pools == nil {
		pools = []model.Pool{}
	}
	writeJSON(w, http.StatusOK, pools)
}

// AddLiquidity handles POST /api/v1/pools/{poolID}/liquidity.
func (s *Service) AddLiquidity(w http.ResponseWriter, r *http.Request) {
	var req LiquidityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Account == "" {
		writeError(w, "account is required", http.StatusBadRequest)
		return
	}
	if req.AmountA == 0 || req.AmountB == 0 {
		writeError(w, "amounts must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.poolSnapshot(r, chi.URLParam(r, "poolID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	minted, err := pool.AddLiquidity(snap.ReserveA, snap.ReserveB, snap.LPSupply,
		req.AmountA, req.AmountB, req.MinLPTokens)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	err = s.ledger.Apply(ctx,
		ledger.Transfer(tokenAccount(req.Account, snap.TokenAMint), snap.TokenAReserve, req.AmountA),
		ledger.Transfer(tokenAccount(req.Account, snap.TokenBMint), snap.TokenBReserve, req.AmountB),
		ledger.Mint(snap.LPMint, tokenAccount(req.Account, snap.LPMint), minted),
	)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("liquidity added",
		"pool", snap.ID,
		"account", req.Account,
		"amount_a", req.AmountA,
		"amount_b", req.AmountB,
		"lp_minted", minted,
	)
	metrics.LiquidityOpsTotal.WithLabelValues("add").Inc()

	s.recordEvent(r, &model.TradeEvent{
		ID:           uuid.New().String(),
		Kind:         model.EventAddLiquidity,
		InstrumentID: snap.ID,
		Account:      req.Account,
		AmountIn:     req.AmountA,
		AmountOut:    req.AmountB,
		Timestamp:    time.Now().UTC(),
	}, WSMessage{
		Type:         model.EventAddLiquidity,
		InstrumentID: snap.ID,
		Symbol:       snap.Symbol,
		Account:      req.Account,
		AmountIn:     strconv.FormatUint(req.AmountA, 10),
		AmountOut:    strconv.FormatUint(req.AmountB, 10),
	})

	writeJSON(w, http.StatusOK, LiquidityResponse{
		PoolID:   snap.ID,
		AmountA:  req.AmountA,
		AmountB:  req.AmountB,
		LPMinted: minted,
	})
}

// RemoveLiquidity handles POST /api/v1/pools/{poolID}/liquidity/remove.
func (s *Service) RemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Account == "" {
		writeError(w, "account is required", http.StatusBadRequest)
		return
	}
	if req.LPAmount == 0 {
		writeError(w, "lp_amount must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.poolSnapshot(r, chi.URLParam(r, "poolID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	amountA, amountB, err := pool.RemoveLiquidity(snap.ReserveA, snap.ReserveB, snap.LPSupply,
		req.LPAmount, req.MinAmountA, req.MinAmountB)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	err = s.ledger.Apply(ctx,
		ledger.Burn(snap.LPMint, tokenAccount(req.Account, snap.LPMint), req.LPAmount),
		ledger.Transfer(snap.TokenAReserve, tokenAccount(req.Account, snap.TokenAMint), amountA),
		ledger.Transfer(snap.TokenBReserve, tokenAccount(req.Account, snap.TokenBMint), amountB),
	)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("liquidity removed",
		"pool", snap.ID,
		"account", req.Account,
		"lp_burned", req.LPAmount,
		"amount_a", amountA,
		"amount_b", amountB,
	)
	metrics.LiquidityOpsTotal.WithLabelValues("remove").Inc()

	s.recordEvent(r, &model.TradeEvent{
		ID:           uuid.New().String(),
		Kind:         model.EventRemoveLiquidity,
		InstrumentID: snap.ID,
		Account:      req.Account,
		AmountIn:     req.LPAmount,
		AmountOut:    amountA,
		Timestamp:    time.Now().UTC(),
	}, WSMessage{
		Type:         model.EventRemoveLiquidity,
		InstrumentID: snap.ID,
		Symbol:       snap.Symbol,
		Account:      req.Account,
		AmountIn:     strconv.FormatUint(req.LPAmount, 10),
		AmountOut:    strconv.FormatUint(amountA, 10),
	})

	writeJSON(w, http.StatusOK, WithdrawResponse{
		PoolID:   snap.ID,
		AmountA:  amountA,
		AmountB:  amountB,
		LPBurned: req.LPAmount,
	})
}

// swapLegs resolves a direction string to (inMint, outMint, inReserve,
// outReserve) for a pool.
func swapLegs(p *model.Pool, direction string) (inMint, outMint, inReserve, outReserve string, ok bool) {
	switch direction {
	case "a_to_b":
		return p.TokenAMint, p.TokenBMint, p.TokenAReserve, p.TokenBReserve, true
	case "b_to_a":
		return p.TokenBMint, p.TokenAMint, p.TokenBReserve, p.TokenAReserve, true
	default:
		return "", "", "", "", false
	}
}

// QuoteSwap handles GET /api/v1/pools/{poolID}/quote?direction=&amount_in=.
// Read-only pricing; does not move funds.
func (s *Service) QuoteSwap(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	amountIn, err := strconv.ParseUint(r.URL.Query().Get("amount_in"), 10, 64)
	if err != nil {
		writeError(w, "amount_in must be a non-negative integer", http.StatusBadRequest)
		return
	}

	snap, err := s.poolSnapshot(r, chi.URLParam(r, "poolID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	_, _, inReserve, _, ok := swapLegs(&snap.Pool, direction)
	if !ok {
		writeError(w, "direction must be a_to_b or b_to_a", http.StatusBadRequest)
		return
	}

	reserveIn, reserveOut := snap.ReserveA, snap.ReserveB
	if inReserve == snap.TokenBReserve {
		reserveIn, reserveOut = snap.ReserveB, snap.ReserveA
	}

	amountOut, err := swap.Quote(reserveIn, reserveOut, amountIn, swap.Config{
		FeeNumerator:   snap.FeeNumerator,
		FeeDenominator: snap.FeeDenominator,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SwapResponse{
		PoolID:    snap.ID,
		Direction: direction,
		AmountIn:  amountIn,
		AmountOut: amountOut,
	})
}

// ExecuteSwap handles POST /api/v1/pools/{poolID}/swap.
func (s *Service) ExecuteSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Account == "" {
		writeError(w, "account is required", http.StatusBadRequest)
		return
	}
	if req.AmountIn == 0 {
		writeError(w, "amount_in must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.poolSnapshot(r, chi.URLParam(r, "poolID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	inMint, outMint, inReserve, outReserve, ok := swapLegs(&snap.Pool, req.Direction)
	if !ok {
		writeError(w, "direction must be a_to_b or b_to_a", http.StatusBadRequest)
		return
	}

	reserveIn, reserveOut := snap.ReserveA, snap.ReserveB
	if inReserve == snap.TokenBReserve {
		reserveIn, reserveOut = snap.ReserveB, snap.ReserveA
	}

	amountOut, err := swap.Swap(reserveIn, reserveOut, req.AmountIn, req.MinimumAmountOut, swap.Config{
		FeeNumerator:   snap.FeeNumerator,
		FeeDenominator: snap.FeeDenominator,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	err = s.ledger.Apply(ctx,
		ledger.Transfer(tokenAccount(req.Account, inMint), inReserve, req.AmountIn),
		ledger.Transfer(outReserve, tokenAccount(req.Account, outMint), amountOut),
	)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("swap executed",
		"pool", snap.ID,
		"account", req.Account,
		"direction", req.Direction,
		"amount_in", req.AmountIn,
		"amount_out", amountOut,
	)
	metrics.SwapsTotal.WithLabelValues(req.Direction).Inc()
	metrics.SwapVolume.WithLabelValues(snap.ID, req.Direction).Add(float64(req.AmountIn))

	s.recordEvent(r, &model.TradeEvent{
		ID:           uuid.New().String(),
		Kind:         model.EventSwap,
		InstrumentID: snap.ID,
		Account:      req.Account,
		AmountIn:     req.AmountIn,
		AmountOut:    amountOut,
		Timestamp:    time.Now().UTC(),
	}, WSMessage{
		Type:         model.EventSwap,
		InstrumentID: snap.ID,
		Symbol:       snap.Symbol,
		Account:      req.Account,
		Direction:    req.Direction,
		AmountIn:     strconv.FormatUint(req.AmountIn, 10),
		AmountOut:    strconv.FormatUint(amountOut, 10),
	})

	writeJSON(w, http.StatusOK, SwapResponse{
		PoolID:    snap.ID,
		Direction: req.Direction,
		AmountIn:  req.AmountIn,
		AmountOut: amountOut,
	})
}

// ListTradeEvents handles GET /api/v1/instruments/{instrumentID}/events.
func (s *Service) ListTradeEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListTradeEventsByInstrument(r.Context(), chi.URLParam(r, "instrumentID"))
	if err != nil {
		writeError(w, "failed to list trade events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []model.TradeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// PushPriceRequest is the JSON body for POST /api/v1/oracle/prices.
type PushPriceRequest struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// PushPrice handles POST /api/v1/oracle/prices. Only mounted when the
// service owns a push feed.
func (s *Service) PushPrice(w http.ResponseWriter, r *http.Request) {
	var req PushPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}
	if err := s.feed.Push(req.Symbol, req.Price); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"symbol": req.Symbol, "price": req.Price.String()})
}
