package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parallaxfi/dex-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// 64-bit unsigned amounts are stored as NUMERIC and round-tripped as text,
// since BIGINT cannot carry the upper half of the uint64 range.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func fmtU(v uint64) string { return strconv.FormatUint(v, 10) }

func parseU(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

// duplicate maps a unique-constraint violation onto ErrAlreadyExists so
// symbol uniqueness surfaces the same sentinel as the memory store.
func duplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.ConstraintName)
	}
	return err
}

func notFound(err error, what, key string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, key)
	}
	return fmt.Errorf("get %s %s: %w", what, key, err)
}

// --- Pools ---

func (s *PostgresStore) CreatePool(ctx context.Context, p *model.Pool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pools (id, symbol, token_a_mint, token_b_mint, token_a_reserve, token_b_reserve,
		                    lp_mint, fee_numerator, fee_denominator, authority, authority_bump, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, $9::NUMERIC, $10, $11, $12)`,
		p.ID, p.Symbol, p.TokenAMint, p.TokenBMint, p.TokenAReserve, p.TokenBReserve,
		p.LPMint, fmtU(p.FeeNumerator), fmtU(p.FeeDenominator), p.Authority, int16(p.AuthorityBump), p.CreatedAt,
	)
	return duplicate(err)
}

const poolColumns = `id, symbol, token_a_mint, token_b_mint, token_a_reserve, token_b_reserve,
       lp_mint, fee_numerator::TEXT, fee_denominator::TEXT, authority, authority_bump, created_at`

func scanPool(row pgx.Row) (*model.Pool, error) {
	var p model.Pool
	var feeNum, feeDen string
	var bump int16
	err := row.Scan(&p.ID, &p.Symbol, &p.TokenAMint, &p.TokenBMint, &p.TokenAReserve, &p.TokenBReserve,
		&p.LPMint, &feeNum, &feeDen, &p.Authority, &bump, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.FeeNumerator = parseU(feeNum)
	p.FeeDenominator = parseU(feeDen)
	p.AuthorityBump = uint8(bump)
	return &p, nil
}

func (s *PostgresStore) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	p, err := scanPool(s.pool.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM pools WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "pool", id)
	}
	return p, nil
}

func (s *PostgresStore) GetPoolBySymbol(ctx context.Context, symbol string) (*model.Pool, error) {
	p, err := scanPool(s.pool.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM pools WHERE symbol = $1`, symbol))
	if err != nil {
		return nil, notFound(err, "pool symbol", symbol)
	}
	return p, nil
}

func (s *PostgresStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+poolColumns+` FROM pools ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, *p)
	}
	return pools, rows.Err()
}

// --- Perpetual markets ---

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.PerpetualMarket) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO perp_markets (id, symbol, base_mint, quote_mint, base_vault, quote_vault,
		                           authority, authority_bump, initial_margin_ratio, maintenance_margin_ratio,
		                           liquidation_fee_bps, total_long, total_short, open_interest,
		                           funding_rate, funding_index, last_funding_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10::NUMERIC,
		         $11::NUMERIC, $12::NUMERIC, $13::NUMERIC, $14::NUMERIC,
		         $15, $16::NUMERIC, $17, $18)`,
		m.ID, m.Symbol, m.BaseMint, m.QuoteMint, m.BaseVault, m.QuoteVault,
		m.Authority, int16(m.AuthorityBump), fmtU(m.InitialMarginRatio), fmtU(m.MaintenanceMarginRatio),
		fmtU(m.LiquidationFeeBps), fmtU(m.TotalLong), fmtU(m.TotalShort), fmtU(m.OpenInterest),
		m.FundingRate, fmtU(m.FundingIndex), m.LastFundingTime, m.CreatedAt,
	)
	return duplicate(err)
}

const marketColumns = `id, symbol, base_mint, quote_mint, base_vault, quote_vault,
       authority, authority_bump, initial_margin_ratio::TEXT, maintenance_margin_ratio::TEXT,
       liquidation_fee_bps::TEXT, total_long::TEXT, total_short::TEXT, open_interest::TEXT,
       funding_rate, funding_index::TEXT, last_funding_time, created_at`

func scanMarket(row pgx.Row) (*model.PerpetualMarket, error) {
	var m model.PerpetualMarket
	var initial, maintenance, liqFee, long, short, oi, fundingIndex string
	var bump int16
	err := row.Scan(&m.ID, &m.Symbol, &m.BaseMint, &m.QuoteMint, &m.BaseVault, &m.QuoteVault,
		&m.Authority, &bump, &initial, &maintenance,
		&liqFee, &long, &short, &oi,
		&m.FundingRate, &fundingIndex, &m.LastFundingTime, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.AuthorityBump = uint8(bump)
	m.InitialMarginRatio = parseU(initial)
	m.MaintenanceMarginRatio = parseU(maintenance)
	m.LiquidationFeeBps = parseU(liqFee)
	m.TotalLong = parseU(long)
	m.TotalShort = parseU(short)
	m.OpenInterest = parseU(oi)
	m.FundingIndex = parseU(fundingIndex)
	return &m, nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.PerpetualMarket, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM perp_markets WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "market", id)
	}
	return m, nil
}

func (s *PostgresStore) GetMarketBySymbol(ctx context.Context, symbol string) (*model.PerpetualMarket, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM perp_markets WHERE symbol = $1`, symbol))
	if err != nil {
		return nil, notFound(err, "market symbol", symbol)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.PerpetualMarket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM perp_markets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.PerpetualMarket
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpdateMarket(ctx context.Context, m *model.PerpetualMarket) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE perp_markets
		 SET total_long = $2::NUMERIC, total_short = $3::NUMERIC, open_interest = $4::NUMERIC,
		     funding_rate = $5, funding_index = $6::NUMERIC, last_funding_time = $7
		 WHERE id = $1`,
		m.ID, fmtU(m.TotalLong), fmtU(m.TotalShort), fmtU(m.OpenInterest),
		m.FundingRate, fmtU(m.FundingIndex), m.LastFundingTime,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: market %s", ErrNotFound, m.ID)
	}
	return nil
}

// --- Positions ---

func (s *PostgresStore) CreatePosition(ctx context.Context, p *model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (id, market_id, owner, size, entry_price, collateral,
		                        leverage, last_funding_index, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8::NUMERIC, $9)`,
		p.ID, p.MarketID, p.Owner, p.Size, fmtU(p.EntryPrice), fmtU(p.Collateral),
		int16(p.Leverage), fmtU(p.LastFundingIndex), p.CreatedAt,
	)
	return duplicate(err)
}

const positionColumns = `id, market_id, owner, size, entry_price::TEXT, collateral::TEXT,
       leverage, last_funding_index::TEXT, created_at`

func scanPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	var entryPrice, collateral, fundingIndex string
	var leverage int16
	err := row.Scan(&p.ID, &p.MarketID, &p.Owner, &p.Size, &entryPrice, &collateral,
		&leverage, &fundingIndex, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.EntryPrice = parseU(entryPrice)
	p.Collateral = parseU(collateral)
	p.Leverage = uint8(leverage)
	p.LastFundingIndex = parseU(fundingIndex)
	return &p, nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "position", id)
	}
	return p, nil
}

func (s *PostgresStore) listPositions(ctx context.Context, where string, arg any) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE `+where+` ORDER BY created_at`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) ListPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	return s.listPositions(ctx, `owner = $1`, owner)
}

func (s *PostgresStore) ListPositionsByMarket(ctx context.Context, marketID string) ([]model.Position, error) {
	return s.listPositions(ctx, `market_id = $1`, marketID)
}

func (s *PostgresStore) DeletePosition(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: position %s", ErrNotFound, id)
	}
	return nil
}

// --- Trade log ---

func (s *PostgresStore) InsertTradeEvent(ctx context.Context, e *model.TradeEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_events (id, kind, instrument_id, account, amount_in, amount_out, size, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8)`,
		e.ID, e.Kind, e.InstrumentID, e.Account, fmtU(e.AmountIn), fmtU(e.AmountOut), e.Size, e.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListTradeEventsByInstrument(ctx context.Context, instrumentID string) ([]model.TradeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, instrument_id, account, amount_in::TEXT, amount_out::TEXT, size, timestamp
		 FROM trade_events WHERE instrument_id = $1 ORDER BY timestamp`, instrumentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.TradeEvent
	for rows.Next() {
		var e model.TradeEvent
		var amountIn, amountOut string
		if err := rows.Scan(&e.ID, &e.Kind, &e.InstrumentID, &e.Account,
			&amountIn, &amountOut, &e.Size, &e.Timestamp); err != nil {
			return nil, err
		}
		e.AmountIn = parseU(amountIn)
		e.AmountOut = parseU(amountOut)
		events = append(events, e)
	}
	return events, rows.Err()
}
