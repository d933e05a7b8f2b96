package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yaccurue5-bingl/stockplatform-sub000/config"
	"github.com/yaccurue5-bingl/stockplatform-sub000/model"
	"github.com/yaccurue5-bingl/stockplatform-sub000/service"
)

type stubLedgerStore struct{}

func (stubLedgerStore) IsProcessed(ctx context.Context, corpCode, rceptNo string) (bool, error) {
	return false, nil
}
func (stubLedgerStore) Register(ctx context.Context, entry model.LedgerEntry) error { return nil }
func (stubLedgerStore) Invalidate(ctx context.Context, corpCode, rceptNo string) error {
	return nil
}
func (stubLedgerStore) IsBundleCalled(ctx context.Context, corpCode, bundleDate, timeBucket string) (bool, error) {
	return false, nil
}
func (stubLedgerStore) RegisterBundle(ctx context.Context, entry model.BundleEntry) error {
	return nil
}
func (stubLedgerStore) CleanupExpired(ctx context.Context) (int64, error) { return 0, nil }
func (stubLedgerStore) Stats(ctx context.Context) (model.LedgerStats, error) {
	return model.LedgerStats{LiveEntries: 120, LiveCorrections: 4, LiveBundles: 9}, nil
}

type stubHotStore struct{}

func (stubHotStore) Promote(ctx context.Context, hs model.HotStock) error { return nil }
func (stubHotStore) DemoteExpired(ctx context.Context) (int64, error)     { return 0, nil }
func (stubHotStore) IsHot(ctx context.Context, corpCode string) (bool, error) {
	return false, nil
}
func (stubHotStore) Active(ctx context.Context) ([]model.HotStock, error) {
	return []model.HotStock{
		{
			CorpCode:     "00126380",
			StockCode:    "005930",
			CorpName:     "삼성전자",
			Reason:       model.ReasonPriceSpike,
			TriggerValue: decimal.NewFromFloat(7.5),
			ExpiresAt:    time.Now().Add(20 * time.Minute),
		},
	}, nil
}
func (stubHotStore) Stats(ctx context.Context) (model.HotStats, error) {
	return model.HotStats{Active: 1, PriceSpikes: 1}, nil
}

type stubReaders struct{}

func (stubReaders) HasRecentImportant(ctx context.Context, corpCode string, since time.Time, low, high float64) (bool, error) {
	return false, nil
}
func (stubReaders) LatestChangeRate(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (stubReaders) VolumeRatio(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func newStatsHandler() *StatsHandler {
	cfg := &config.Config{
		Sharding: config.ShardingConfig{ShardCount: 3},
		Ledger:   config.LedgerConfig{RetentionDays: 30, BundleTTLMinutes: 60},
		Hot:      config.HotConfig{TTLMinutes: 30},
	}
	ledger := service.NewLedger(stubLedgerStore{}, &cfg.Ledger)
	hot := service.NewHotStocks(stubHotStore{}, stubReaders{}, stubReaders{}, &cfg.Hot)
	history := service.NewTickHistory(10)
	history.Record(service.TickStats{Mode: service.ModeRegular, Fetched: 8})
	return NewStatsHandler(ledger, hot, history, cfg)
}

func TestGetStats(t *testing.T) {
	handler := newStatsHandler()

	router := gin.New()
	router.GET("/stats", handler.GetStats)

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Ledger      model.LedgerStats   `json:"ledger"`
		Hot         model.HotStats      `json:"hot"`
		RecentTicks []service.TickStats `json:"recent_ticks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if response.Ledger.LiveEntries != 120 {
		t.Errorf("Expected 120 live entries, got %d", response.Ledger.LiveEntries)
	}
	if response.Hot.Active != 1 {
		t.Errorf("Expected 1 active hot stock, got %d", response.Hot.Active)
	}
	if len(response.RecentTicks) != 1 || response.RecentTicks[0].Fetched != 8 {
		t.Errorf("Expected recent tick with 8 fetched, got %+v", response.RecentTicks)
	}
}

func TestListHotStocks(t *testing.T) {
	handler := newStatsHandler()

	router := gin.New()
	router.GET("/hot-stocks", handler.ListHotStocks)

	req := httptest.NewRequest("GET", "/hot-stocks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Count     int              `json:"count"`
		HotStocks []model.HotStock `json:"hot_stocks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Count != 1 {
		t.Errorf("Expected 1 hot stock, got %d", response.Count)
	}
	if response.HotStocks[0].CorpCode != "00126380" {
		t.Errorf("Unexpected hot stock: %+v", response.HotStocks[0])
	}
}
