package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yaccurue5-bingl/stockplatform-sub000/pkg/logger"
	"github.com/yaccurue5-bingl/stockplatform-sub000/service"
)

// TickRunner is the orchestration surface the cron endpoints drive.
type TickRunner interface {
	RunTick(ctx context.Context) (service.TickStats, error)
	RunHotTick(ctx context.Context) (service.TickStats, error)
	Cleanup(ctx context.Context) (service.CleanupStats, error)
}

// CronHandler exposes the scheduler-facing tick endpoints. Auth is handled
// by the CronAuth middleware; these handlers only run the tick and report
// its accounting.
type CronHandler struct {
	analyzer TickRunner
}

func NewCronHandler(analyzer TickRunner) *CronHandler {
	return &CronHandler{analyzer: analyzer}
}

// AnalyzeDisclosures runs one regular, shard-gated ingestion tick.
func (h *CronHandler) AnalyzeDisclosures(c *gin.Context) {
	ctx := logger.WithJob(c.Request.Context(), "analyze-disclosures")

	stats, err := h.analyzer.RunTick(ctx)
	if err != nil {
		logger.Error(ctx, "tick failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
			"stats":   stats,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

// AnalyzeHotStocks runs one hot tick: demote expired entities, then process
// the feed for the remaining hot entities without shard gating.
func (h *CronHandler) AnalyzeHotStocks(c *gin.Context) {
	ctx := logger.WithJob(c.Request.Context(), "analyze-hot-stocks")

	stats, err := h.analyzer.RunHotTick(ctx)
	if err != nil {
		logger.Error(ctx, "hot tick failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
			"stats":   stats,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

// Cleanup deletes expired ledger rows and demotes expired hot entities.
func (h *CronHandler) Cleanup(c *gin.Context) {
	ctx := logger.WithJob(c.Request.Context(), "cleanup")

	stats, err := h.analyzer.Cleanup(ctx)
	if err != nil {
		logger.Error(ctx, "cleanup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}
