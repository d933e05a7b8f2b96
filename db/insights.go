package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yaccurue5-bingl/stockplatform-sub000/model"
)

// InsightRepo persists per-disclosure analysis results.
type InsightRepo struct {
	pool *pgxpool.Pool
}

// NewInsightRepo creates a new insight repository.
func NewInsightRepo(pool *pgxpool.Pool) *InsightRepo {
	return &InsightRepo{pool: pool}
}

// SaveGroup stores one entity group's results and its ledger registrations
// in a single transaction, then applies correction invalidations. A record
// is never marked processed without its result durably stored, and vice
// versa.
func (r *InsightRepo) SaveGroup(
	ctx context.Context,
	insights []model.Insight,
	entries []model.LedgerEntry,
	invalidations []model.LedgerEntry,
) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, in := range insights {
		batch.Queue(`
			INSERT INTO disclosure_insights (
				corp_code, rcept_no, corp_name, stock_code, report_name,
				received_at, summary, sentiment, sentiment_score, importance,
				is_correction, analyzed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (corp_code, rcept_no) DO UPDATE SET
				summary = EXCLUDED.summary,
				sentiment = EXCLUDED.sentiment,
				sentiment_score = EXCLUDED.sentiment_score,
				importance = EXCLUDED.importance,
				is_correction = EXCLUDED.is_correction,
				analyzed_at = EXCLUDED.analyzed_at
		`, in.CorpCode, in.ReceiptNo, in.CorpName, in.StockCode, in.ReportName,
			in.ReceivedAt, in.Summary, in.Sentiment, in.SentimentScore, in.Importance,
			in.IsCorrection, in.AnalyzedAt)
	}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO disclosure_hashes (
				hash_key, corp_code, rcept_no, corp_name, report_name,
				is_correction, corrects_rcept_no, analyzed_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
			ON CONFLICT (hash_key) DO UPDATE SET
				analyzed_at = EXCLUDED.analyzed_at,
				expires_at = EXCLUDED.expires_at
		`, e.HashKey, e.CorpCode, e.ReceiptNo, e.CorpName, e.ReportName,
			e.IsCorrection, e.CorrectsReceiptNo, e.AnalyzedAt, e.ExpiresAt)
	}
	// Invalidations run after registrations so a corrected original ends
	// up expired even when both arrive in the same group.
	for _, inv := range invalidations {
		batch.Queue(`
			UPDATE disclosure_hashes SET expires_at = NOW()
			WHERE corp_code = $1 AND rcept_no = $2
		`, inv.CorpCode, inv.ReceiptNo)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("saving group: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	return tx.Commit(ctx)
}

// HasRecentImportant reports whether the entity has an insight since the
// given time with HIGH importance or a sentiment score outside [low, high].
func (r *InsightRepo) HasRecentImportant(
	ctx context.Context,
	corpCode string,
	since time.Time,
	low, high float64,
) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM disclosure_insights
			WHERE corp_code = $1
			  AND analyzed_at >= $2
			  AND (importance = 'HIGH' OR sentiment_score < $3 OR sentiment_score > $4)
		)
	`, corpCode, since, low, high).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking recent important insight: %w", err)
	}
	return exists, nil
}
