package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/parallaxfi/dex-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	pools     map[string]*model.Pool
	markets   map[string]*model.PerpetualMarket
	positions map[string]*model.Position
	events    []model.TradeEvent
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:     make(map[string]*model.Pool),
		markets:   make(map[string]*model.PerpetualMarket),
		positions: make(map[string]*model.Position),
	}
}

// --- Pools ---

func (s *MemoryStore) CreatePool(_ context.Context, p *model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[p.ID]; ok {
		return fmt.Errorf("%w: pool %s", ErrAlreadyExists, p.ID)
	}
	for _, existing := range s.pools {
		if existing.Symbol == p.Symbol {
			return fmt.Errorf("%w: pool symbol %s", ErrAlreadyExists, p.Symbol)
		}
	}

	// Store a copy to avoid external mutation.
	cp := *p
	s.pools[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPool(_ context.Context, id string) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: pool %s", ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetPoolBySymbol(_ context.Context, symbol string) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.pools {
		if p.Symbol == symbol {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: pool symbol %s", ErrNotFound, symbol)
}

func (s *MemoryStore) ListPools(_ context.Context) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]model.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, *p)
	}
	return pools, nil
}

// --- Perpetual markets ---

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.PerpetualMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; ok {
		return fmt.Errorf("%w: market %s", ErrAlreadyExists, m.ID)
	}
	for _, existing := range s.markets {
		if existing.Symbol == m.Symbol {
			return fmt.Errorf("%w: market symbol %s", ErrAlreadyExists, m.Symbol)
		}
	}

	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*model.PerpetualMarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: market %s", ErrNotFound, id)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) GetMarketBySymbol(_ context.Context, symbol string) (*model.PerpetualMarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.markets {
		if m.Symbol == symbol {
			cp := *m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: market symbol %s", ErrNotFound, symbol)
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.PerpetualMarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.PerpetualMarket, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *m)
	}
	return markets, nil
}

func (s *MemoryStore) UpdateMarket(_ context.Context, m *model.PerpetualMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; !ok {
		return fmt.Errorf("%w: market %s", ErrNotFound, m.ID)
	}
	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

// --- Positions ---

func (s *MemoryStore) CreatePosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[p.ID]; ok {
		return fmt.Errorf("%w: position %s", ErrAlreadyExists, p.ID)
	}
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: position %s", ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPositionsByOwner(_ context.Context, owner string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for _, p := range s.positions {
		if p.Owner == owner {
			positions = append(positions, *p)
		}
	}
	return positions, nil
}

func (s *MemoryStore) ListPositionsByMarket(_ context.Context, marketID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for _, p := range s.positions {
		if p.MarketID == marketID {
			positions = append(positions, *p)
		}
	}
	return positions, nil
}

func (s *MemoryStore) DeletePosition(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[id]; !ok {
		return fmt.Errorf("%w: position %s", ErrNotFound, id)
	}
	delete(s.positions, id)
	return nil
}

// --- Trade log ---

func (s *MemoryStore) InsertTradeEvent(_ context.Context, e *model.TradeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryStore) ListTradeEventsByInstrument(_ context.Context, instrumentID string) ([]model.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeEvent
	for _, e := range s.events {
		if e.InstrumentID == instrumentID {
			result = append(result, e)
		}
	}
	return result, nil
}
