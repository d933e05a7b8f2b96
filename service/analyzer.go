package service

import (
	"context"
	"strings"
	"time"

	"github.com/yaccurue5-bingl/stockplatform-sub000/config"
	"github.com/yaccurue5-bingl/stockplatform-sub000/model"
	"github.com/yaccurue5-bingl/stockplatform-sub000/pkg/logger"
	"github.com/yaccurue5-bingl/stockplatform-sub000/pkg/sharding"
)

// Feed pulls disclosure records from the external source.
type Feed interface {
	FetchRecent(ctx context.Context, daysBack int, listedOnly bool) ([]model.Disclosure, []byte, error)
}

// Inference analyzes disclosures. Implementations degrade failed calls to
// fallback results instead of returning errors.
type Inference interface {
	AnalyzeSingle(ctx context.Context, corpName, stockCode, title, text string) model.AnalysisResult
	AnalyzeBundle(ctx context.Context, corpName, stockCode string, items []BundleItem) model.AnalysisResult
}

// GroupSaver persists one entity group's insights together with its ledger
// registrations and invalidations, atomically.
type GroupSaver interface {
	SaveGroup(ctx context.Context, insights []model.Insight, entries []model.LedgerEntry, invalidations []model.LedgerEntry) error
}

// Archiver stores raw feed payloads for replay.
type Archiver interface {
	StoreSnapshot(ctx context.Context, now time.Time, payload []byte) (string, error)
}

// Tick modes.
const (
	ModeRegular = "regular"
	ModeHot     = "hot"
)

// TickStats is the accounting for one tick, returned to the caller and kept
// in the tick history.
type TickStats struct {
	Mode              string          `json:"mode"`
	StartedAt         time.Time       `json:"started_at"`
	DurationMS        int64           `json:"duration_ms"`
	Fetched           int             `json:"fetched"`
	Untracked         int             `json:"untracked"`
	Excluded          int             `json:"excluded"`
	Duplicates        int             `json:"duplicates"`
	ShardSkipped      int             `json:"shard_skipped"`
	HotBypass         int             `json:"hot_bypass"`
	EntitiesProcessed int             `json:"entities_processed"`
	SingleCalls       int             `json:"single_calls"`
	BundledCalls      int             `json:"bundled_calls"`
	InsightsSaved     int             `json:"insights_saved"`
	Invalidations     int             `json:"invalidations"`
	PersistFailures   int             `json:"persist_failures"`
	Promotions        int             `json:"promotions"`
	Demoted           int64           `json:"demoted,omitempty"`
	BudgetStopped     bool            `json:"budget_stopped"`
	TokensUsed        int             `json:"tokens_used"`
	Sharding          sharding.Status `json:"sharding"`
}

// CleanupStats is the accounting for one cleanup run.
type CleanupStats struct {
	LedgerDeleted int64 `json:"ledger_deleted"`
	HotDemoted    int64 `json:"hot_demoted"`
}

// Analyzer orchestrates one ingestion tick: fetch, filter, shard-gate,
// analyze within a token budget, persist atomically, and feed the hot
// lifecycle. The feed call is the only hard dependency of a tick; every
// later failure degrades per record or per entity.
type Analyzer struct {
	feed      Feed
	inference Inference
	saver     GroupSaver
	archiver  Archiver
	ledger    *Ledger
	hot       *HotStocks
	history   *TickHistory
	cfg       *config.Config
	now       func() time.Time
}

func NewAnalyzer(
	feed Feed,
	inference Inference,
	saver GroupSaver,
	archiver Archiver,
	ledger *Ledger,
	hot *HotStocks,
	history *TickHistory,
	cfg *config.Config,
) *Analyzer {
	return &Analyzer{
		feed:      feed,
		inference: inference,
		saver:     saver,
		archiver:  archiver,
		ledger:    ledger,
		hot:       hot,
		history:   history,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunTick executes one regular tick: shard-gated processing of everything
// new in the feed.
func (a *Analyzer) RunTick(ctx context.Context) (TickStats, error) {
	now := a.now()
	stats := TickStats{
		Mode:      ModeRegular,
		StartedAt: now,
		Sharding:  sharding.CurrentStatus(now, a.cfg.Sharding.ShardCount),
	}

	records, raw, err := a.feed.FetchRecent(ctx, a.cfg.Analysis.LookbackDays, false)
	if err != nil {
		return stats, err
	}
	stats.Fetched = len(records)
	a.archive(ctx, now, raw)

	accepted := a.filter(ctx, records, &stats)
	groups := GroupByEntity(accepted)

	for _, group := range groups {
		if a.cfg.Hot.Enabled && a.hot.IsHot(ctx, group.CorpCode) {
			stats.HotBypass++
		} else if !sharding.ShouldProcessNow(group.CorpCode, now, a.cfg.Sharding.ShardCount) {
			stats.ShardSkipped += len(group.Records)
			continue
		}

		if a.overBudget(&stats) {
			break
		}
		a.processGroup(ctx, group, now, &stats)
	}

	stats.DurationMS = time.Since(now).Milliseconds()
	a.record(ctx, stats)
	return stats, nil
}

// RunHotTick executes one hot tick: expired entities are demoted, then the
// feed is processed for the remaining hot entities only, with no shard
// gate. Entities whose triggers still fire get their hot window refreshed.
func (a *Analyzer) RunHotTick(ctx context.Context) (TickStats, error) {
	now := a.now()
	stats := TickStats{
		Mode:      ModeHot,
		StartedAt: now,
		Sharding:  sharding.CurrentStatus(now, a.cfg.Sharding.ShardCount),
	}

	demoted, err := a.hot.DemoteExpired(ctx)
	if err != nil {
		logger.Warn(ctx, "demotion sweep failed", "error", err)
	}
	stats.Demoted = demoted

	active, err := a.hot.Active(ctx)
	if err != nil {
		return stats, err
	}
	if len(active) == 0 {
		stats.DurationMS = time.Since(now).Milliseconds()
		a.record(ctx, stats)
		return stats, nil
	}

	hotSet := make(map[string]model.HotStock, len(active))
	for _, hs := range active {
		hotSet[hs.CorpCode] = hs
	}

	records, raw, err := a.feed.FetchRecent(ctx, a.cfg.Analysis.LookbackDays, true)
	if err != nil {
		return stats, err
	}
	stats.Fetched = len(records)
	a.archive(ctx, now, raw)

	onlyHot := records[:0:0]
	for _, rec := range records {
		if _, ok := hotSet[rec.CorpCode]; ok {
			onlyHot = append(onlyHot, rec)
		}
	}

	accepted := a.filter(ctx, onlyHot, &stats)
	for _, group := range GroupByEntity(accepted) {
		if a.overBudget(&stats) {
			break
		}
		a.processGroup(ctx, group, now, &stats)
	}

	// Re-fire triggers for hot entities so a still-active signal extends
	// the hot window instead of letting it lapse mid-event.
	for _, hs := range active {
		trg := a.hot.CheckTriggers(ctx, hs.CorpCode, hs.StockCode, hs.CorpName, now)
		if trg == nil {
			continue
		}
		if err := a.hot.Promote(ctx, hs.CorpCode, hs.StockCode, hs.CorpName, *trg, now); err != nil {
			logger.Warn(ctx, "hot refresh failed", "corp_code", hs.CorpCode, "error", err)
			continue
		}
		stats.Promotions++
	}

	stats.DurationMS = time.Since(now).Milliseconds()
	a.record(ctx, stats)
	return stats, nil
}

// Cleanup deletes expired ledger rows and demotes expired hot entities.
func (a *Analyzer) Cleanup(ctx context.Context) (CleanupStats, error) {
	var stats CleanupStats

	deleted, err := a.ledger.CleanupExpired(ctx)
	if err != nil {
		return stats, err
	}
	stats.LedgerDeleted = deleted

	demoted, err := a.hot.DemoteExpired(ctx)
	if err != nil {
		return stats, err
	}
	stats.HotDemoted = demoted

	return stats, nil
}

// filter drops untracked, excluded, intra-tick repeated, and already
// processed records. Corrections bypass the duplicate check.
func (a *Analyzer) filter(ctx context.Context, records []model.Disclosure, stats *TickStats) []model.Disclosure {
	seen := make(map[string]bool, len(records))
	accepted := make([]model.Disclosure, 0, len(records))

	for _, rec := range records {
		if !rec.Listed() {
			stats.Untracked++
			continue
		}
		if a.isExcludedReport(rec.ReportName) {
			stats.Excluded++
			continue
		}
		key := rec.CorpCode + "_" + rec.ReceiptNo
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true
		if !a.ledger.IsCorrectionTitle(rec.ReportName) && a.ledger.IsProcessed(ctx, rec.CorpCode, rec.ReceiptNo) {
			stats.Duplicates++
			continue
		}
		accepted = append(accepted, rec)
	}

	return accepted
}

func (a *Analyzer) isExcludedReport(title string) bool {
	for _, kw := range a.cfg.Analysis.ExcludedReportKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// overBudget reports whether issuing one more inference call could exceed
// the tick's token budget, and marks the stop.
func (a *Analyzer) overBudget(stats *TickStats) bool {
	if stats.TokensUsed+a.cfg.Analysis.EstimatedTokensPerCall > a.cfg.Analysis.TokenBudget {
		stats.BudgetStopped = true
		return true
	}
	return false
}

// processGroup analyzes one entity's records with a single or bundled call,
// persists the results atomically with their ledger registrations, then
// evaluates promotion triggers.
func (a *Analyzer) processGroup(ctx context.Context, group DisclosureGroup, now time.Time, stats *TickStats) {
	var result model.AnalysisResult

	if len(group.Records) == 1 {
		rec := group.Records[0]
		result = a.inference.AnalyzeSingle(ctx, group.CorpName, group.StockCode, rec.ReportName, rec.Remarks)
		stats.SingleCalls++
	} else {
		if a.ledger.IsBundleCalled(ctx, group.CorpCode, now) {
			stats.Duplicates += len(group.Records)
			return
		}
		items := make([]BundleItem, 0, len(group.Records))
		for _, rec := range group.Records {
			items = append(items, BundleItem{Title: rec.ReportName, Text: rec.Remarks})
		}
		result = a.inference.AnalyzeBundle(ctx, group.CorpName, group.StockCode, items)
		stats.BundledCalls++
	}
	stats.TokensUsed += result.TokensUsed

	insights, entries, invalidations := a.buildGroup(group, result, now)
	if err := a.saver.SaveGroup(ctx, insights, entries, invalidations); err != nil {
		// Nothing was registered, so these records retry on a later tick.
		logger.Error(ctx, "group persistence failed",
			"corp_code", group.CorpCode, "records", len(group.Records), "error", err)
		stats.PersistFailures += len(group.Records)
		return
	}
	stats.EntitiesProcessed++
	stats.InsightsSaved += len(insights)
	stats.Invalidations += len(invalidations)

	if len(group.Records) > 1 {
		if err := a.ledger.RegisterBundle(ctx, group.CorpCode, group.CorpName, len(group.Records), result.TokensUsed, now); err != nil {
			logger.Warn(ctx, "bundle registration failed", "corp_code", group.CorpCode, "error", err)
		}
	}

	if a.cfg.Hot.Enabled {
		a.checkPromotion(ctx, group, now, stats)
	}
}

// buildGroup produces the insight rows, ledger entries, and correction
// invalidations for one analyzed group. All records in a bundled group share
// the one analysis result. A correction invalidates the group's other,
// non-correction receipts and references the first of them.
func (a *Analyzer) buildGroup(group DisclosureGroup, result model.AnalysisResult, now time.Time) (
	[]model.Insight, []model.LedgerEntry, []model.LedgerEntry,
) {
	var firstOriginal string
	for _, rec := range group.Records {
		if !a.ledger.IsCorrectionTitle(rec.ReportName) {
			firstOriginal = rec.ReceiptNo
			break
		}
	}

	insights := make([]model.Insight, 0, len(group.Records))
	entries := make([]model.LedgerEntry, 0, len(group.Records))
	var invalidations []model.LedgerEntry

	hasCorrection := false
	for _, rec := range group.Records {
		isCorr := a.ledger.IsCorrectionTitle(rec.ReportName)
		if isCorr {
			hasCorrection = true
		}

		corrects := ""
		if isCorr && firstOriginal != rec.ReceiptNo {
			corrects = firstOriginal
		}

		insights = append(insights, model.Insight{
			CorpCode:       rec.CorpCode,
			CorpName:       rec.CorpName,
			StockCode:      rec.StockCode,
			ReportName:     rec.ReportName,
			ReceiptNo:      rec.ReceiptNo,
			ReceivedAt:     rec.ReceivedAt,
			Summary:        result.Summary,
			Sentiment:      result.Sentiment,
			SentimentScore: result.SentimentScore,
			Importance:     result.Importance,
			IsCorrection:   isCorr,
			AnalyzedAt:     now,
		})
		entries = append(entries, a.ledger.Entry(rec, isCorr, corrects, now))
	}

	if hasCorrection {
		for _, rec := range group.Records {
			if a.ledger.IsCorrectionTitle(rec.ReportName) {
				continue
			}
			invalidations = append(invalidations, model.LedgerEntry{
				CorpCode:  rec.CorpCode,
				ReceiptNo: rec.ReceiptNo,
			})
		}
	}

	return insights, entries, invalidations
}

func (a *Analyzer) checkPromotion(ctx context.Context, group DisclosureGroup, now time.Time, stats *TickStats) {
	trg := a.hot.CheckTriggers(ctx, group.CorpCode, group.StockCode, group.CorpName, now)
	if trg == nil {
		return
	}
	if err := a.hot.Promote(ctx, group.CorpCode, group.StockCode, group.CorpName, *trg, now); err != nil {
		logger.Warn(ctx, "promotion failed",
			"corp_code", group.CorpCode, "reason", trg.Reason, "error", err)
		return
	}
	stats.Promotions++
	logger.Info(ctx, "entity promoted to hot",
		"corp_code", group.CorpCode, "corp_name", group.CorpName,
		"reason", trg.Reason, "detail", trg.Detail)
}

func (a *Analyzer) archive(ctx context.Context, now time.Time, raw []byte) {
	if a.archiver == nil || !a.cfg.Archive.Enabled || len(raw) == 0 {
		return
	}
	object, err := a.archiver.StoreSnapshot(ctx, now, raw)
	if err != nil {
		logger.Warn(ctx, "feed snapshot archival failed", "error", err)
		return
	}
	logger.Debug(ctx, "feed snapshot archived", "object", object)
}

func (a *Analyzer) record(ctx context.Context, stats TickStats) {
	if a.history != nil {
		a.history.Record(stats)
	}
	logger.Info(ctx, "tick completed",
		"mode", stats.Mode,
		"fetched", stats.Fetched,
		"duplicates", stats.Duplicates,
		"shard_skipped", stats.ShardSkipped,
		"entities", stats.EntitiesProcessed,
		"single_calls", stats.SingleCalls,
		"bundled_calls", stats.BundledCalls,
		"tokens_used", stats.TokensUsed,
		"budget_stopped", stats.BudgetStopped,
		"promotions", stats.Promotions,
		"duration_ms", stats.DurationMS,
	)
}
