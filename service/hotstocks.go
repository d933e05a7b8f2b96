package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yaccurue5-bingl/stockplatform-sub000/config"
	"github.com/yaccurue5-bingl/stockplatform-sub000/model"
	"github.com/yaccurue5-bingl/stockplatform-sub000/pkg/logger"
)

// HotStore is the persistence contract for hot-entity rows.
type HotStore interface {
	Promote(ctx context.Context, hs model.HotStock) error
	DemoteExpired(ctx context.Context) (int64, error)
	IsHot(ctx context.Context, corpCode string) (bool, error)
	Active(ctx context.Context) ([]model.HotStock, error)
	Stats(ctx context.Context) (model.HotStats, error)
}

// InsightReader exposes the insight lookups the disclosure trigger needs.
type InsightReader interface {
	HasRecentImportant(ctx context.Context, corpCode string, since time.Time, low, high float64) (bool, error)
}

// MarketReader exposes the market lookups the price/volume triggers need.
type MarketReader interface {
	LatestChangeRate(ctx context.Context, stockCode string) (decimal.Decimal, error)
	VolumeRatio(ctx context.Context, stockCode string) (decimal.Decimal, error)
}

// Trigger is the outcome of a fired promotion check.
type Trigger struct {
	Reason    string
	Detail    string
	Value     decimal.Decimal
	Threshold decimal.Decimal
}

// HotStocks manages the hot-entity lifecycle: promotion via triggers,
// TTL-based demotion, and the bypass lookup the orchestrator consults.
// Detection errors degrade to "not hot" / "no trigger" per entity.
type HotStocks struct {
	store    HotStore
	insights InsightReader
	market   MarketReader
	cfg      *config.HotConfig
}

func NewHotStocks(store HotStore, insights InsightReader, market MarketReader, cfg *config.HotConfig) *HotStocks {
	return &HotStocks{
		store:    store,
		insights: insights,
		market:   market,
		cfg:      cfg,
	}
}

// CheckTriggers evaluates promotion triggers in the configured priority
// order (default: important disclosure, price spike, volume spike) and
// returns the first one that fires, or nil.
func (h *HotStocks) CheckTriggers(ctx context.Context, corpCode, stockCode, corpName string, now time.Time) *Trigger {
	for _, reason := range h.cfg.TriggerOrder {
		var trg *Trigger
		switch reason {
		case model.ReasonImportantDisclosure:
			trg = h.detectImportantDisclosure(ctx, corpCode, now)
		case model.ReasonPriceSpike:
			trg = h.detectPriceSpike(ctx, corpCode, stockCode)
		case model.ReasonVolumeSpike:
			trg = h.detectVolumeSpike(ctx, corpCode, stockCode)
		}
		if trg != nil {
			return trg
		}
	}
	return nil
}

func (h *HotStocks) detectImportantDisclosure(ctx context.Context, corpCode string, now time.Time) *Trigger {
	since := now.Add(-time.Duration(h.cfg.RecentWindowMinutes) * time.Minute)
	fired, err := h.insights.HasRecentImportant(ctx, corpCode, since, h.cfg.SentimentLow, h.cfg.SentimentHigh)
	if err != nil {
		logger.Warn(ctx, "important-disclosure check failed", "corp_code", corpCode, "error", err)
		return nil
	}
	if !fired {
		return nil
	}
	return &Trigger{
		Reason: model.ReasonImportantDisclosure,
		Detail: "high importance or extreme sentiment within recent window",
	}
}

func (h *HotStocks) detectPriceSpike(ctx context.Context, corpCode, stockCode string) *Trigger {
	rate, err := h.market.LatestChangeRate(ctx, stockCode)
	if err != nil {
		logger.Debug(ctx, "price spike check unavailable", "corp_code", corpCode, "error", err)
		return nil
	}
	threshold := decimal.NewFromFloat(h.cfg.PriceThreshold)
	if rate.Abs().LessThan(threshold) {
		return nil
	}
	return &Trigger{
		Reason:    model.ReasonPriceSpike,
		Detail:    fmt.Sprintf("%s%% price change", rate.StringFixed(2)),
		Value:     rate,
		Threshold: threshold,
	}
}

func (h *HotStocks) detectVolumeSpike(ctx context.Context, corpCode, stockCode string) *Trigger {
	ratio, err := h.market.VolumeRatio(ctx, stockCode)
	if err != nil {
		logger.Debug(ctx, "volume spike check unavailable", "corp_code", corpCode, "error", err)
		return nil
	}
	threshold := decimal.NewFromFloat(h.cfg.VolumeRatio)
	if ratio.LessThan(threshold) {
		return nil
	}
	return &Trigger{
		Reason:    model.ReasonVolumeSpike,
		Detail:    fmt.Sprintf("%sx average volume", ratio.StringFixed(2)),
		Value:     ratio,
		Threshold: threshold,
	}
}

// Promote creates or refreshes the hot row. The store's upsert keeps
// promoted_at on refresh and increments refresh_count.
func (h *HotStocks) Promote(ctx context.Context, corpCode, stockCode, corpName string, trg Trigger, now time.Time) error {
	return h.store.Promote(ctx, model.HotStock{
		CorpCode:         corpCode,
		StockCode:        stockCode,
		CorpName:         corpName,
		Reason:           trg.Reason,
		ReasonDetail:     trg.Detail,
		TriggerValue:     trg.Value,
		TriggerThreshold: trg.Threshold,
		PromotedAt:       now,
		ExpiresAt:        now.Add(time.Duration(h.cfg.TTLMinutes) * time.Minute),
	})
}

// IsHot reports whether the entity currently bypasses sharding. Lookup
// errors degrade to false for this entity only.
func (h *HotStocks) IsHot(ctx context.Context, corpCode string) bool {
	hot, err := h.store.IsHot(ctx, corpCode)
	if err != nil {
		logger.Warn(ctx, "hot lookup failed, treating as cold", "corp_code", corpCode, "error", err)
		return false
	}
	return hot
}

// DemoteExpired deletes hot rows whose TTL lapsed and returns the count.
func (h *HotStocks) DemoteExpired(ctx context.Context) (int64, error) {
	return h.store.DemoteExpired(ctx)
}

// Active returns all currently hot entities.
func (h *HotStocks) Active(ctx context.Context) ([]model.HotStock, error) {
	return h.store.Active(ctx)
}

// Stats returns hot-entity counts for monitoring.
func (h *HotStocks) Stats(ctx context.Context) (model.HotStats, error) {
	return h.store.Stats(ctx)
}
