package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yaccurue5-bingl/stockplatform-sub000/model"
)

// LedgerRepo persists idempotency and bundle ledger rows. All writes are
// upserts; liveness is encoded as expires_at > now().
type LedgerRepo struct {
	pool *pgxpool.Pool
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// IsProcessed reports whether a live ledger entry exists for the identity.
func (r *LedgerRepo) IsProcessed(ctx context.Context, corpCode, rceptNo string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM disclosure_hashes
			WHERE corp_code = $1 AND rcept_no = $2 AND expires_at > NOW()
		)
	`, corpCode, rceptNo).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking disclosure hash: %w", err)
	}
	return exists, nil
}

// Register upserts a ledger entry keyed by hash_key. Re-registering the
// same identity refreshes analyzed_at/expires_at and nothing else.
func (r *LedgerRepo) Register(ctx context.Context, entry model.LedgerEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO disclosure_hashes (
			hash_key, corp_code, rcept_no, corp_name, report_name,
			is_correction, corrects_rcept_no, analyzed_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		ON CONFLICT (hash_key) DO UPDATE SET
			analyzed_at = EXCLUDED.analyzed_at,
			expires_at = EXCLUDED.expires_at
	`, entry.HashKey, entry.CorpCode, entry.ReceiptNo, entry.CorpName, entry.ReportName,
		entry.IsCorrection, entry.CorrectsReceiptNo, entry.AnalyzedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("registering disclosure hash: %w", err)
	}
	return nil
}

// Invalidate force-expires the entry for a corrected original, making it
// eligible for re-processing if the feed re-emits it.
func (r *LedgerRepo) Invalidate(ctx context.Context, corpCode, rceptNo string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE disclosure_hashes SET expires_at = NOW()
		WHERE corp_code = $1 AND rcept_no = $2
	`, corpCode, rceptNo)
	if err != nil {
		return fmt.Errorf("invalidating disclosure hash: %w", err)
	}
	return nil
}

// IsBundleCalled reports whether a live bundle entry exists for the
// (corp, date, bucket) triple.
func (r *LedgerRepo) IsBundleCalled(ctx context.Context, corpCode, bundleDate, timeBucket string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM bundle_hashes
			WHERE corp_code = $1 AND bundle_date = $2 AND time_bucket = $3
			  AND expires_at > NOW()
		)
	`, corpCode, bundleDate, timeBucket).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking bundle hash: %w", err)
	}
	return exists, nil
}

// RegisterBundle upserts a bundle entry after the bundled call was made.
func (r *LedgerRepo) RegisterBundle(ctx context.Context, entry model.BundleEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bundle_hashes (
			hash_key, corp_code, bundle_date, time_bucket, corp_name,
			disclosure_count, tokens_used, called_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hash_key) DO UPDATE SET
			disclosure_count = EXCLUDED.disclosure_count,
			tokens_used = EXCLUDED.tokens_used,
			called_at = EXCLUDED.called_at,
			expires_at = EXCLUDED.expires_at
	`, entry.HashKey, entry.CorpCode, entry.BundleDate, entry.TimeBucket, entry.CorpName,
		entry.DisclosureCount, entry.TokensUsed, entry.CalledAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("registering bundle hash: %w", err)
	}
	return nil
}

// CleanupExpired removes logically dead rows from both ledger tables and
// returns the total removed. Safe to run concurrently with normal traffic.
func (r *LedgerRepo) CleanupExpired(ctx context.Context) (int64, error) {
	tag1, err := r.pool.Exec(ctx, `DELETE FROM disclosure_hashes WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning disclosure hashes: %w", err)
	}
	tag2, err := r.pool.Exec(ctx, `DELETE FROM bundle_hashes WHERE expires_at <= NOW()`)
	if err != nil {
		return tag1.RowsAffected(), fmt.Errorf("cleaning bundle hashes: %w", err)
	}
	return tag1.RowsAffected() + tag2.RowsAffected(), nil
}

// Stats returns live row counts for monitoring.
func (r *LedgerRepo) Stats(ctx context.Context) (model.LedgerStats, error) {
	var stats model.LedgerStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM disclosure_hashes WHERE expires_at > NOW()),
			(SELECT COUNT(*) FROM disclosure_hashes WHERE expires_at > NOW() AND is_correction),
			(SELECT COUNT(*) FROM bundle_hashes WHERE expires_at > NOW())
	`).Scan(&stats.LiveEntries, &stats.LiveCorrections, &stats.LiveBundles)
	if err != nil {
		return model.LedgerStats{}, fmt.Errorf("querying ledger stats: %w", err)
	}
	return stats, nil
}
