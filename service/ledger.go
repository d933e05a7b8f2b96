package service

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/yaccurue5-bingl/stockplatform-sub000/config"
	"github.com/yaccurue5-bingl/stockplatform-sub000/model"
	"github.com/yaccurue5-bingl/stockplatform-sub000/pkg/logger"
)

// LedgerStore is the persistence contract for ledger rows.
type LedgerStore interface {
	IsProcessed(ctx context.Context, corpCode, rceptNo string) (bool, error)
	Register(ctx context.Context, entry model.LedgerEntry) error
	Invalidate(ctx context.Context, corpCode, rceptNo string) error
	IsBundleCalled(ctx context.Context, corpCode, bundleDate, timeBucket string) (bool, error)
	RegisterBundle(ctx context.Context, entry model.BundleEntry) error
	CleanupExpired(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (model.LedgerStats, error)
}

// Ledger decides which disclosure identities are genuinely new. Lookups
// fail open: a storage error means "not a duplicate", trading bounded
// duplicate inference cost for availability.
type Ledger struct {
	store              LedgerStore
	retention          time.Duration
	bundleTTL          time.Duration
	correctionKeywords []string
}

func NewLedger(store LedgerStore, cfg *config.LedgerConfig) *Ledger {
	return &Ledger{
		store:              store,
		retention:          time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		bundleTTL:          time.Duration(cfg.BundleTTLMinutes) * time.Minute,
		correctionKeywords: cfg.CorrectionKeywords,
	}
}

// DisclosureHash is the storage key for one (corp, receipt) identity.
func DisclosureHash(corpCode, rceptNo string) string {
	sum := sha256.Sum256([]byte(corpCode + "_" + rceptNo))
	return hex.EncodeToString(sum[:])
}

// BundleHash is the storage key for one (corp, date, bucket) triple.
func BundleHash(corpCode string, date time.Time, timeBucket string) string {
	raw := corpCode + "_" + date.Format("20060102") + "_" + timeBucket
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TimeBucket returns the 15-minute bucket label (HHMM) for now.
func TimeBucket(now time.Time) string {
	bucket := now.Truncate(15 * time.Minute)
	return bucket.Format("1504")
}

// IsProcessed reports whether the identity already has a live ledger entry.
func (l *Ledger) IsProcessed(ctx context.Context, corpCode, rceptNo string) bool {
	processed, err := l.store.IsProcessed(ctx, corpCode, rceptNo)
	if err != nil {
		logger.Warn(ctx, "ledger lookup failed, treating as unprocessed",
			"corp_code", corpCode, "receipt_no", rceptNo, "error", err)
		return false
	}
	return processed
}

// IsCorrectionTitle reports whether a report title marks a correction
// disclosure. Corrections always bypass the duplicate check.
func (l *Ledger) IsCorrectionTitle(title string) bool {
	for _, kw := range l.correctionKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// Entry builds the ledger row for an accepted record.
func (l *Ledger) Entry(d model.Disclosure, isCorrection bool, correctsReceiptNo string, now time.Time) model.LedgerEntry {
	return model.LedgerEntry{
		HashKey:           DisclosureHash(d.CorpCode, d.ReceiptNo),
		CorpCode:          d.CorpCode,
		ReceiptNo:         d.ReceiptNo,
		CorpName:          d.CorpName,
		ReportName:        d.ReportName,
		IsCorrection:      isCorrection,
		CorrectsReceiptNo: correctsReceiptNo,
		AnalyzedAt:        now,
		ExpiresAt:         now.Add(l.retention),
	}
}

// Register upserts a ledger entry for the record's identity.
func (l *Ledger) Register(ctx context.Context, d model.Disclosure, isCorrection bool, correctsReceiptNo string, now time.Time) error {
	return l.store.Register(ctx, l.Entry(d, isCorrection, correctsReceiptNo, now))
}

// Invalidate force-expires the entry for a corrected original.
func (l *Ledger) Invalidate(ctx context.Context, corpCode, rceptNo string) error {
	return l.store.Invalidate(ctx, corpCode, rceptNo)
}

// IsBundleCalled reports whether the expensive bundled call already ran for
// this entity in the current time bucket. Fails open like IsProcessed.
func (l *Ledger) IsBundleCalled(ctx context.Context, corpCode string, now time.Time) bool {
	called, err := l.store.IsBundleCalled(ctx, corpCode, now.Format("2006-01-02"), TimeBucket(now))
	if err != nil {
		logger.Warn(ctx, "bundle lookup failed, treating as not called",
			"corp_code", corpCode, "error", err)
		return false
	}
	return called
}

// RegisterBundle records that a bundled call was made for the entity in the
// current time bucket.
func (l *Ledger) RegisterBundle(ctx context.Context, corpCode, corpName string, disclosureCount, tokensUsed int, now time.Time) error {
	bucket := TimeBucket(now)
	return l.store.RegisterBundle(ctx, model.BundleEntry{
		HashKey:         BundleHash(corpCode, now, bucket),
		CorpCode:        corpCode,
		BundleDate:      now.Format("2006-01-02"),
		TimeBucket:      bucket,
		CorpName:        corpName,
		DisclosureCount: disclosureCount,
		TokensUsed:      tokensUsed,
		CalledAt:        now,
		ExpiresAt:       now.Add(l.bundleTTL),
	})
}

// CleanupExpired deletes logically dead ledger rows and returns the count.
func (l *Ledger) CleanupExpired(ctx context.Context) (int64, error) {
	return l.store.CleanupExpired(ctx)
}

// Stats returns live ledger counts for monitoring.
func (l *Ledger) Stats(ctx context.Context) (model.LedgerStats, error) {
	return l.store.Stats(ctx)
}
