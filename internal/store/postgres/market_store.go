package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matkalabs/matkad/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, market_id, name, open_time, close_time,
	open_betting, is_betting_open,
	open_number, close_number, open_single_digit, close_single_digit,
	jodi, open_single_panna, close_single_panna,
	created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ID, &m.MarketID, &m.Name, &m.OpenTime, &m.CloseTime,
		&m.OpenBetting, &m.IsBettingOpen,
		&m.Result.OpenNumber, &m.Result.CloseNumber,
		&m.Result.OpenSingleDigit, &m.Result.CloseSingleDigit,
		&m.Result.Jodi, &m.Result.OpenSinglePanna, &m.Result.CloseSinglePanna,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new market and returns the stored row.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO markets (
			market_id, name, open_time, close_time,
			open_betting, is_betting_open,
			open_number, close_number, open_single_digit, close_single_digit,
			jodi, open_single_panna, close_single_panna
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10,
			$11, $12, $13
		)
		RETURNING `+marketCols,
		m.MarketID, m.Name, m.OpenTime, m.CloseTime,
		m.OpenBetting, m.IsBettingOpen,
		m.Result.OpenNumber, m.Result.CloseNumber,
		m.Result.OpenSingleDigit, m.Result.CloseSingleDigit,
		m.Result.Jodi, m.Result.OpenSinglePanna, m.Result.CloseSinglePanna,
	)
	created, err := scanMarket(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Market{}, fmt.Errorf("postgres: create market %s: %w", m.MarketID, domain.ErrAlreadyExists)
		}
		return domain.Market{}, fmt.Errorf("postgres: create market %s: %w", m.MarketID, err)
	}
	return created, nil
}

// ListAll returns every market ordered by name.
func (s *MarketStore) ListAll(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// GetByMarketID retrieves a market by its external identifier.
func (s *MarketStore) GetByMarketID(ctx context.Context, marketID string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE market_id = $1`, marketID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", marketID, err)
	}
	return m, nil
}

// GetByName retrieves a market by its display name.
func (s *MarketStore) GetByName(ctx context.Context, name string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE name = $1`, name)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by name %s: %w", name, err)
	}
	return m, nil
}

// UpdateSchedule updates a market's name and civil open/close times.
func (s *MarketStore) UpdateSchedule(ctx context.Context, marketID, name, openTime, closeTime string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE markets
		SET name = $2, open_time = $3, close_time = $4, updated_at = NOW()
		WHERE market_id = $1
		RETURNING `+marketCols,
		marketID, name, openTime, closeTime,
	)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		if isUniqueViolation(err) {
			return domain.Market{}, fmt.Errorf("postgres: update market %s: %w", marketID, domain.ErrAlreadyExists)
		}
		return domain.Market{}, fmt.Errorf("postgres: update market %s: %w", marketID, err)
	}
	return m, nil
}

// UpdateFlags applies a partial update of the window flags. Nil delta
// fields leave the corresponding column untouched.
func (s *MarketStore) UpdateFlags(ctx context.Context, marketID string, delta domain.FlagsDelta) error {
	if delta.IsZero() {
		return nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE markets
		SET open_betting    = COALESCE($2, open_betting),
		    is_betting_open = COALESCE($3, is_betting_open),
		    updated_at      = NOW()
		WHERE market_id = $1`,
		marketID, delta.OpenBetting, delta.IsBettingOpen,
	)
	if err != nil {
		return fmt.Errorf("postgres: update flags for %s: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateResult overwrites a market's result record and applies the flags
// delta in the same statement, so a declaration and its window change are
// atomic.
func (s *MarketStore) UpdateResult(ctx context.Context, marketID string, result domain.Result, delta domain.FlagsDelta) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE markets
		SET open_number        = $2,
		    close_number       = $3,
		    open_single_digit  = $4,
		    close_single_digit = $5,
		    jodi               = $6,
		    open_single_panna  = $7,
		    close_single_panna = $8,
		    open_betting       = COALESCE($9, open_betting),
		    is_betting_open    = COALESCE($10, is_betting_open),
		    updated_at         = NOW()
		WHERE market_id = $1
		RETURNING `+marketCols,
		marketID,
		result.OpenNumber, result.CloseNumber,
		result.OpenSingleDigit, result.CloseSingleDigit,
		result.Jodi, result.OpenSinglePanna, result.CloseSinglePanna,
		delta.OpenBetting, delta.IsBettingOpen,
	)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: update result for %s: %w", marketID, err)
	}
	return m, nil
}

// ResetAllResults bulk-overwrites every market's result record and
// applies the flags delta. Returns the number of markets touched.
func (s *MarketStore) ResetAllResults(ctx context.Context, result domain.Result, delta domain.FlagsDelta) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE markets
		SET open_number        = $1,
		    close_number       = $2,
		    open_single_digit  = $3,
		    close_single_digit = $4,
		    jodi               = $5,
		    open_single_panna  = $6,
		    close_single_panna = $7,
		    open_betting       = COALESCE($8, open_betting),
		    is_betting_open    = COALESCE($9, is_betting_open),
		    updated_at         = NOW()`,
		result.OpenNumber, result.CloseNumber,
		result.OpenSingleDigit, result.CloseSingleDigit,
		result.Jodi, result.OpenSinglePanna, result.CloseSinglePanna,
		delta.OpenBetting, delta.IsBettingOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: reset all results: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a market.
func (s *MarketStore) Delete(ctx context.Context, marketID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM markets WHERE market_id = $1`, marketID)
	if err != nil {
		return fmt.Errorf("postgres: delete market %s: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
