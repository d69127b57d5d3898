// Package store defines the entity persistence interface for the exchange
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
//
// Entities are keyed by opaque ids; authority over who may mutate an
// entity is enforced by the service layer, not here.
package store

import (
	"context"
	"errors"

	"github.com/parallaxfi/dex-engine/internal/model"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned on create collisions (duplicate id or
	// symbol).
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the persistence interface.
type Store interface {
	// --- Pools ---

	// CreatePool persists a new pool. Fails ErrAlreadyExists on a
	// duplicate symbol.
	CreatePool(ctx context.Context, p *model.Pool) error

	// GetPool retrieves a pool by id.
	GetPool(ctx context.Context, id string) (*model.Pool, error)

	// GetPoolBySymbol retrieves a pool by its trading symbol.
	GetPoolBySymbol(ctx context.Context, symbol string) (*model.Pool, error)

	// ListPools returns all pools.
	ListPools(ctx context.Context) ([]model.Pool, error)

	// --- Perpetual markets ---

	// CreateMarket persists a new perpetual market.
	CreateMarket(ctx context.Context, m *model.PerpetualMarket) error

	// GetMarket retrieves a market by id.
	GetMarket(ctx context.Context, id string) (*model.PerpetualMarket, error)

	// GetMarketBySymbol retrieves a market by its trading symbol.
	GetMarketBySymbol(ctx context.Context, symbol string) (*model.PerpetualMarket, error)

	// ListMarkets returns all markets.
	ListMarkets(ctx context.Context) ([]model.PerpetualMarket, error)

	// UpdateMarket persists aggregate/funding changes after an operation.
	UpdateMarket(ctx context.Context, m *model.PerpetualMarket) error

	// --- Positions ---

	// CreatePosition persists a new position.
	CreatePosition(ctx context.Context, p *model.Position) error

	// GetPosition retrieves a position by id.
	GetPosition(ctx context.Context, id string) (*model.Position, error)

	// ListPositionsByOwner returns all open positions of one owner.
	ListPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error)

	// ListPositionsByMarket returns all open positions in one market.
	ListPositionsByMarket(ctx context.Context, marketID string) ([]model.Position, error)

	// DeletePosition removes a closed or liquidated position.
	DeletePosition(ctx context.Context, id string) error

	// --- Immutable trade log ---

	// InsertTradeEvent appends an immutable operation record.
	InsertTradeEvent(ctx context.Context, e *model.TradeEvent) error

	// ListTradeEventsByInstrument returns all events for a pool or market.
	ListTradeEventsByInstrument(ctx context.Context, instrumentID string) ([]model.TradeEvent, error)
}
