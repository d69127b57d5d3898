package exchange

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parallaxfi/dex-engine/internal/metrics"
	"github.com/parallaxfi/dex-engine/internal/model"
	"github.com/parallaxfi/dex-engine/internal/perp"
)

// FundingResponse is returned from a funding trigger.
type FundingResponse struct {
	MarketID     string `json:"market_id"`
	Updated      bool   `json:"updated"`
	FundingRate  int64  `json:"funding_rate"` // bps
	FundingIndex uint64 `json:"funding_index"`
}

// updateFunding recomputes funding for one market and persists the result.
// Caller holds s.mu. Returns false when the book is empty.
func (s *Service) updateFunding(ctx context.Context, m *model.PerpetualMarket, now time.Time) (bool, error) {
	changed, err := perp.UpdateFunding(m, now)
	if err != nil || !changed {
		return false, err
	}
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		return false, err
	}

	slog.Info("funding updated",
		"market", m.Symbol,
		"rate_bps", m.FundingRate,
		"index", m.FundingIndex,
		"total_long", m.TotalLong,
		"total_short", m.TotalShort,
	)
	metrics.FundingRate.WithLabelValues(m.Symbol).Set(float64(m.FundingRate))

	if err := s.store.InsertTradeEvent(ctx, &model.TradeEvent{
		ID:           uuid.New().String(),
		Kind:         model.EventFundingUpdate,
		InstrumentID: m.ID,
		Timestamp:    now,
	}); err != nil {
		slog.Error("trade event insert failed", "kind", model.EventFundingUpdate, "instrument", m.ID, "err", err)
	}
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:         model.EventFundingUpdate,
			InstrumentID: m.ID,
			Symbol:       m.Symbol,
			FundingRate:  strconv.FormatInt(m.FundingRate, 10),
		})
	}
	return true, nil
}

// TriggerFunding handles POST /api/v1/markets/{marketID}/funding.
func (s *Service) TriggerFunding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, chi.URLParam(r, "marketID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	updated, err := s.updateFunding(ctx, m, time.Now().UTC())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FundingResponse{
		MarketID:     m.ID,
		Updated:      updated,
		FundingRate:  m.FundingRate,
		FundingIndex: m.FundingIndex,
	})
}

// RunFundingLoop recomputes funding for every market at the given interval
// until ctx is canceled. Run in a goroutine.
func (s *Service) RunFundingLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.fundingSweep(ctx, now.UTC())
		}
	}
}

func (s *Service) fundingSweep(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		slog.Error("funding sweep: list markets failed", "err", err)
		return
	}
	for i := range markets {
		m := &markets[i]
		if _, err := s.updateFunding(ctx, m, now); err != nil {
			slog.Error("funding sweep: update failed", "market", m.Symbol, "err", err)
		}
	}
}
