package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parallaxfi/dex-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate or refresh cache) ---

func (s *CachedStore) CreatePool(ctx context.Context, p *model.Pool) error {
	if err := s.primary.CreatePool(ctx, p); err != nil {
		return err
	}
	s.cachePool(ctx, p)
	return nil
}

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.PerpetualMarket) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) UpdateMarket(ctx context.Context, m *model.PerpetualMarket) error {
	if err := s.primary.UpdateMarket(ctx, m); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, marketKey(m.ID))
	return nil
}

func (s *CachedStore) CreatePosition(ctx context.Context, p *model.Position) error {
	if err := s.primary.CreatePosition(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, ownerPositionsKey(p.Owner))
	return nil
}

func (s *CachedStore) DeletePosition(ctx context.Context, id string) error {
	p, err := s.primary.GetPosition(ctx, id)
	if err != nil {
		return err
	}
	if err := s.primary.DeletePosition(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKey(id), ownerPositionsKey(p.Owner))
	return nil
}

func (s *CachedStore) InsertTradeEvent(ctx context.Context, e *model.TradeEvent) error {
	return s.primary.InsertTradeEvent(ctx, e)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, poolKey(id)).Bytes()
	if err == nil {
		var p model.Pool
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	// Cache miss: read from primary.
	p, err := s.primary.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cachePool(ctx, p)
	return p, nil
}

func (s *CachedStore) GetPoolBySymbol(ctx context.Context, symbol string) (*model.Pool, error) {
	// Try cache via symbol→poolID mapping.
	poolID, err := s.rdb.Get(ctx, symbolKey(symbol)).Result()
	if err == nil {
		return s.GetPool(ctx, poolID)
	}

	// Cache miss.
	p, err := s.primary.GetPoolBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// Cache both the pool and the symbol→ID mapping.
	s.cachePool(ctx, p)
	return p, nil
}

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*model.PerpetualMarket, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.PerpetualMarket
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetMarketBySymbol(ctx context.Context, symbol string) (*model.PerpetualMarket, error) {
	marketID, err := s.rdb.Get(ctx, symbolKey(symbol)).Result()
	if err == nil {
		return s.GetMarket(ctx, marketID)
	}

	m, err := s.primary.GetMarketBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	data, err := s.rdb.Get(ctx, positionKey(id)).Bytes()
	if err == nil {
		var p model.Position
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPosition(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, positionKey(id), data, s.ttl)
	}
	return p, nil
}

func (s *CachedStore) ListPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	data, err := s.rdb.Get(ctx, ownerPositionsKey(owner)).Bytes()
	if err == nil {
		var positions []model.Position
		if json.Unmarshal(data, &positions) == nil {
			return positions, nil
		}
	}

	positions, err := s.primary.ListPositionsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(positions); err == nil {
		s.rdb.Set(ctx, ownerPositionsKey(owner), data, s.ttl)
	}
	return positions, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.primary.ListPools(ctx)
}

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.PerpetualMarket, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) ListPositionsByMarket(ctx context.Context, marketID string) ([]model.Position, error) {
	return s.primary.ListPositionsByMarket(ctx, marketID)
}

func (s *CachedStore) ListTradeEventsByInstrument(ctx context.Context, instrumentID string) ([]model.TradeEvent, error) {
	return s.primary.ListTradeEventsByInstrument(ctx, instrumentID)
}

// --- Cache helpers ---

func (s *CachedStore) cachePool(ctx context.Context, p *model.Pool) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, poolKey(p.ID), data, s.ttl)
		s.rdb.Set(ctx, symbolKey(p.Symbol), p.ID, s.ttl)
	}
}

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.PerpetualMarket) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
		s.rdb.Set(ctx, symbolKey(m.Symbol), m.ID, s.ttl)
	}
}

func poolKey(id string) string              { return fmt.Sprintf("pool:%s", id) }
func marketKey(id string) string            { return fmt.Sprintf("market:%s", id) }
func positionKey(id string) string          { return fmt.Sprintf("position:%s", id) }
func symbolKey(symbol string) string        { return fmt.Sprintf("symbol:%s", symbol) }
func ownerPositionsKey(owner string) string { return fmt.Sprintf("positions:%s", owner) }
