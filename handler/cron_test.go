package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yaccurue5-bingl/stockplatform-sub000/middleware"
	"github.com/yaccurue5-bingl/stockplatform-sub000/service"
)

type fakeRunner struct {
	tickStats    service.TickStats
	tickErr      error
	hotStats     service.TickStats
	hotErr       error
	cleanupStats service.CleanupStats
	cleanupErr   error
}

func (f *fakeRunner) RunTick(ctx context.Context) (service.TickStats, error) {
	return f.tickStats, f.tickErr
}

func (f *fakeRunner) RunHotTick(ctx context.Context) (service.TickStats, error) {
	return f.hotStats, f.hotErr
}

func (f *fakeRunner) Cleanup(ctx context.Context) (service.CleanupStats, error) {
	return f.cleanupStats, f.cleanupErr
}

func newCronRouter(runner *fakeRunner, secret string) *gin.Engine {
	handler := NewCronHandler(runner)
	router := gin.New()
	cron := router.Group("/api/cron")
	cron.Use(middleware.CronAuth(secret))
	cron.POST("/analyze-disclosures", handler.AnalyzeDisclosures)
	cron.POST("/analyze-hot-stocks", handler.AnalyzeHotStocks)
	cron.POST("/cleanup", handler.Cleanup)
	return router
}

func TestCronEndpointsRequireSecret(t *testing.T) {
	router := newCronRouter(&fakeRunner{}, "cron-secret")

	paths := []string{
		"/api/cron/analyze-disclosures",
		"/api/cron/analyze-hot-stocks",
		"/api/cron/cleanup",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 without secret, got %d", w.Code)
			}

			req = httptest.NewRequest("POST", path, nil)
			req.Header.Set("Authorization", "Bearer cron-secret")
			w = httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200 with secret, got %d", w.Code)
			}
		})
	}
}

func TestAnalyzeDisclosuresReturnsStats(t *testing.T) {
	runner := &fakeRunner{
		tickStats: service.TickStats{
			Mode:              service.ModeRegular,
			Fetched:           12,
			Duplicates:        3,
			EntitiesProcessed: 4,
			TokensUsed:        1800,
		},
	}
	router := newCronRouter(runner, "cron-secret")

	req := httptest.NewRequest("POST", "/api/cron/analyze-disclosures", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Success bool              `json:"success"`
		Stats   service.TickStats `json:"stats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if !response.Success {
		t.Error("Expected success true")
	}
	if response.Stats.Fetched != 12 {
		t.Errorf("Expected 12 fetched, got %d", response.Stats.Fetched)
	}
	if response.Stats.TokensUsed != 1800 {
		t.Errorf("Expected 1800 tokens used, got %d", response.Stats.TokensUsed)
	}
}

func TestAnalyzeDisclosuresFeedFailure(t *testing.T) {
	runner := &fakeRunner{tickErr: errors.New("feed unavailable")}
	router := newCronRouter(runner, "cron-secret")

	req := httptest.NewRequest("POST", "/api/cron/analyze-disclosures", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502 on feed failure, got %d", w.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["success"] != false {
		t.Error("Expected success false")
	}
}

func TestCleanupReturnsCounts(t *testing.T) {
	runner := &fakeRunner{
		cleanupStats: service.CleanupStats{LedgerDeleted: 42, HotDemoted: 2},
	}
	router := newCronRouter(runner, "cron-secret")

	req := httptest.NewRequest("POST", "/api/cron/cleanup", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Success bool                 `json:"success"`
		Stats   service.CleanupStats `json:"stats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Stats.LedgerDeleted != 42 {
		t.Errorf("Expected 42 ledger rows deleted, got %d", response.Stats.LedgerDeleted)
	}
	if response.Stats.HotDemoted != 2 {
		t.Errorf("Expected 2 hot demotions, got %d", response.Stats.HotDemoted)
	}
}
