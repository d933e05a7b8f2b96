package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNoQuotes is returned when no market data exists for a stock code.
var ErrNoQuotes = errors.New("no market quotes for stock")

// MarketRepo reads market quotes written by the separate collection
// pipeline. Only the read side lives here; this subsystem never writes
// quotes.
type MarketRepo struct {
	pool *pgxpool.Pool
}

// NewMarketRepo creates a new market repository.
func NewMarketRepo(pool *pgxpool.Pool) *MarketRepo {
	return &MarketRepo{pool: pool}
}

// LatestChangeRate returns the most recent day's price change rate in
// percent for a stock code.
func (r *MarketRepo) LatestChangeRate(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(change_rate, 0) FROM market_quotes
		WHERE stock_code = $1
		ORDER BY quote_date DESC
		LIMIT 1
	`, stockCode).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNoQuotes
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("querying change rate: %w", err)
	}
	return rate, nil
}

// VolumeRatio returns the latest day's volume divided by the average of the
// five preceding trading days.
func (r *MarketRepo) VolumeRatio(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	var latest, average decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		WITH recent AS (
			SELECT volume, quote_date,
			       ROW_NUMBER() OVER (ORDER BY quote_date DESC) AS rn
			FROM market_quotes
			WHERE stock_code = $1 AND volume IS NOT NULL
		)
		SELECT
			COALESCE((SELECT volume FROM recent WHERE rn = 1), 0),
			COALESCE((SELECT AVG(volume) FROM recent WHERE rn BETWEEN 2 AND 6), 0)
	`, stockCode).Scan(&latest, &average)
	if err != nil {
		return decimal.Zero, fmt.Errorf("querying volume ratio: %w", err)
	}
	if average.IsZero() {
		return decimal.Zero, ErrNoQuotes
	}
	return latest.Div(average), nil
}
