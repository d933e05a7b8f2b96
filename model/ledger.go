package model

import (
	"time"
)

// LedgerEntry marks one (corp, receipt) identity as analyzed. State is
// encoded by row presence with TTL: a live entry means "already processed".
type LedgerEntry struct {
	HashKey           string    `json:"hash_key"`
	CorpCode          string    `json:"corp_code"`
	ReceiptNo         string    `json:"receipt_no"`
	CorpName          string    `json:"corp_name"`
	ReportName        string    `json:"report_name"`
	IsCorrection      bool      `json:"is_correction"`
	CorrectsReceiptNo string    `json:"corrects_receipt_no,omitempty"`
	AnalyzedAt        time.Time `json:"analyzed_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// BundleEntry guards the expensive bundled analysis tier: at most one live
// entry per (corp, date, time bucket), with a short TTL.
type BundleEntry struct {
	HashKey         string    `json:"hash_key"`
	CorpCode        string    `json:"corp_code"`
	BundleDate      string    `json:"bundle_date"` // YYYY-MM-DD
	TimeBucket      string    `json:"time_bucket"` // HHMM, 15-minute buckets
	CorpName        string    `json:"corp_name"`
	DisclosureCount int       `json:"disclosure_count"`
	TokensUsed      int       `json:"tokens_used"`
	CalledAt        time.Time `json:"called_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// LedgerStats summarizes live ledger rows for the monitoring endpoint.
type LedgerStats struct {
	LiveEntries     int64 `json:"live_entries"`
	LiveCorrections int64 `json:"live_corrections"`
	LiveBundles     int64 `json:"live_bundles"`
}
