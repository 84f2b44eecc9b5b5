package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matkalabs/matkad/internal/domain"
)

// ResultHistoryStore implements domain.ResultHistoryStore using PostgreSQL.
type ResultHistoryStore struct {
	pool *pgxpool.Pool
}

// NewResultHistoryStore creates a new ResultHistoryStore backed by the
// given connection pool.
func NewResultHistoryStore(pool *pgxpool.Pool) *ResultHistoryStore {
	return &ResultHistoryStore{pool: pool}
}

const historyCols = `id, market_id, market_name, result_date,
	open_number, close_number, open_single_digit, close_single_digit,
	jodi, created_at`

// Append inserts a new history row.
func (s *ResultHistoryStore) Append(ctx context.Context, entry domain.ResultEntry) error {
	const query = `
		INSERT INTO result_history (
			market_id, market_name, result_date,
			open_number, close_number,
			open_single_digit, close_single_digit, jodi
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		entry.MarketID, entry.MarketName, entry.ResultDate,
		entry.OpenNumber, entry.CloseNumber,
		entry.OpenSingleDigit, entry.CloseSingleDigit, entry.Jodi,
	)
	if err != nil {
		return fmt.Errorf("postgres: append result history for %s: %w", entry.MarketID, err)
	}
	return nil
}

// ListByMarket returns history rows for one market, newest first.
func (s *ResultHistoryStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.ResultEntry, error) {
	query := `SELECT ` + historyCols + ` FROM result_history WHERE market_id = $1 ORDER BY result_date DESC, id DESC`
	args := []any{marketID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list result history for %s: %w", marketID, err)
	}
	defer rows.Close()

	return scanResultEntries(rows)
}

// ListAll returns history rows across all markets, newest first.
func (s *ResultHistoryStore) ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.ResultEntry, error) {
	query := `SELECT ` + historyCols + ` FROM result_history ORDER BY result_date DESC, id DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list result history: %w", err)
	}
	defer rows.Close()

	return scanResultEntries(rows)
}

// ListBefore returns rows created strictly before the cutoff, oldest
// first, for archival.
func (s *ResultHistoryStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ResultEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+historyCols+` FROM result_history
		 WHERE created_at < $1 ORDER BY created_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list result history before %v: %w", before, err)
	}
	defer rows.Close()

	return scanResultEntries(rows)
}

// DeleteBefore removes rows created strictly before the cutoff.
func (s *ResultHistoryStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM result_history WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete result history before %v: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanResultEntries(rows pgx.Rows) ([]domain.ResultEntry, error) {
	var entries []domain.ResultEntry
	for rows.Next() {
		var e domain.ResultEntry
		if err := rows.Scan(
			&e.ID, &e.MarketID, &e.MarketName, &e.ResultDate,
			&e.OpenNumber, &e.CloseNumber,
			&e.OpenSingleDigit, &e.CloseSingleDigit,
			&e.Jodi, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan result history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list result history rows: %w", err)
	}
	return entries, nil
}
