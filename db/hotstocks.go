package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yaccurue5-bingl/stockplatform-sub000/model"
)

// HotStockRepo persists the hot-entity table. A live row (expires_at in the
// future) is the hot state; demotion is deletion.
type HotStockRepo struct {
	pool *pgxpool.Pool
}

// NewHotStockRepo creates a new hot stock repository.
func NewHotStockRepo(pool *pgxpool.Pool) *HotStockRepo {
	return &HotStockRepo{pool: pool}
}

// Promote upserts a hot row. A fresh promotion sets promoted_at; a re-fired
// trigger while already hot only extends expires_at and increments
// refresh_count, leaving promoted_at at the original entry into hot state.
func (r *HotStockRepo) Promote(ctx context.Context, hs model.HotStock) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hot_stocks (
			corp_code, stock_code, corp_name, reason, reason_detail,
			trigger_value, trigger_threshold, promoted_at, expires_at, refresh_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
		ON CONFLICT (corp_code) DO UPDATE SET
			reason = EXCLUDED.reason,
			reason_detail = EXCLUDED.reason_detail,
			trigger_value = EXCLUDED.trigger_value,
			trigger_threshold = EXCLUDED.trigger_threshold,
			expires_at = EXCLUDED.expires_at,
			refresh_count = hot_stocks.refresh_count + 1
	`, hs.CorpCode, hs.StockCode, hs.CorpName, hs.Reason, hs.ReasonDetail,
		hs.TriggerValue, hs.TriggerThreshold, hs.PromotedAt, hs.ExpiresAt)
	if err != nil {
		return fmt.Errorf("promoting hot stock: %w", err)
	}
	return nil
}

// DemoteExpired deletes rows whose TTL has lapsed. No trigger re-check:
// expiry is unconditional.
func (r *HotStockRepo) DemoteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM hot_stocks WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("demoting expired hot stocks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// IsHot reports whether a live hot row exists for the entity.
func (r *HotStockRepo) IsHot(ctx context.Context, corpCode string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM hot_stocks WHERE corp_code = $1 AND expires_at > NOW()
		)
	`, corpCode).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking hot stock: %w", err)
	}
	return exists, nil
}

// Active returns all live hot rows.
func (r *HotStockRepo) Active(ctx context.Context) ([]model.HotStock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT corp_code, stock_code, corp_name, reason, reason_detail,
		       COALESCE(trigger_value, 0), COALESCE(trigger_threshold, 0),
		       promoted_at, expires_at, refresh_count
		FROM hot_stocks
		WHERE expires_at > NOW()
		ORDER BY promoted_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying active hot stocks: %w", err)
	}
	defer rows.Close()

	var active []model.HotStock
	for rows.Next() {
		var hs model.HotStock
		if err := rows.Scan(
			&hs.CorpCode, &hs.StockCode, &hs.CorpName, &hs.Reason, &hs.ReasonDetail,
			&hs.TriggerValue, &hs.TriggerThreshold,
			&hs.PromotedAt, &hs.ExpiresAt, &hs.RefreshCount,
		); err != nil {
			return nil, fmt.Errorf("scanning hot stock: %w", err)
		}
		active = append(active, hs)
	}
	return active, rows.Err()
}

// Stats returns live hot-row counts grouped by reason.
func (r *HotStockRepo) Stats(ctx context.Context) (model.HotStats, error) {
	var stats model.HotStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE reason = 'price_spike'),
			COUNT(*) FILTER (WHERE reason = 'volume_spike'),
			COUNT(*) FILTER (WHERE reason = 'important_disclosure')
		FROM hot_stocks
		WHERE expires_at > NOW()
	`).Scan(&stats.Active, &stats.PriceSpikes, &stats.VolumeSpikes, &stats.DisclosureTriggers)
	if err != nil {
		return model.HotStats{}, fmt.Errorf("querying hot stats: %w", err)
	}
	return stats, nil
}
