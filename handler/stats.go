package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yaccurue5-bingl/stockplatform-sub000/config"
	"github.com/yaccurue5-bingl/stockplatform-sub000/pkg/logger"
	"github.com/yaccurue5-bingl/stockplatform-sub000/pkg/sharding"
	"github.com/yaccurue5-bingl/stockplatform-sub000/service"
)

// StatsHandler serves the monitoring view: live ledger counts, hot-entity
// counts, the current shard window, and recent tick outcomes.
type StatsHandler struct {
	ledger  *service.Ledger
	hot     *service.HotStocks
	history *service.TickHistory
	config  *config.Config
}

func NewStatsHandler(ledger *service.Ledger, hot *service.HotStocks, history *service.TickHistory, cfg *config.Config) *StatsHandler {
	return &StatsHandler{
		ledger:  ledger,
		hot:     hot,
		history: history,
		config:  cfg,
	}
}

// GetStats returns the monitoring snapshot.
func (h *StatsHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	ledgerStats, err := h.ledger.Stats(ctx)
	if err != nil {
		logger.Error(ctx, "ledger stats query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load ledger stats"})
		return
	}

	hotStats, err := h.hot.Stats(ctx)
	if err != nil {
		logger.Error(ctx, "hot stats query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load hot stats"})
		return
	}

	recent := 10
	if v := c.Query("recent"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			recent = n
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"ledger":       ledgerStats,
		"hot":          hotStats,
		"sharding":     sharding.CurrentStatus(time.Now(), h.config.Sharding.ShardCount),
		"recent_ticks": h.history.Recent(recent),
	})
}

// ListHotStocks returns the currently hot entities.
func (h *StatsHandler) ListHotStocks(c *gin.Context) {
	ctx := c.Request.Context()

	active, err := h.hot.Active(ctx)
	if err != nil {
		logger.Error(ctx, "hot list query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load hot stocks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(active),
		"hot_stocks": active,
	})
}
