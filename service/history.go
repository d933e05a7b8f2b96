package service

import (
	"sync"
)

// TickHistory is an in-memory record of recent tick outcomes, kept for the
// stats endpoint. Oldest entries drop off once maxTicks is exceeded.
type TickHistory struct {
	ticks    []TickStats
	mu       sync.RWMutex
	maxTicks int
}

func NewTickHistory(maxTicks int) *TickHistory {
	if maxTicks <= 0 {
		maxTicks = 50
	}
	return &TickHistory{maxTicks: maxTicks}
}

func (h *TickHistory) Record(stats TickStats) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ticks = append(h.ticks, stats)
	if len(h.ticks) > h.maxTicks {
		h.ticks = h.ticks[len(h.ticks)-h.maxTicks:]
	}
}

// Recent returns up to n most recent ticks, newest first.
func (h *TickHistory) Recent(n int) []TickStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.ticks) {
		n = len(h.ticks)
	}
	out := make([]TickStats, 0, n)
	for i := len(h.ticks) - 1; i >= len(h.ticks)-n; i-- {
		out = append(out, h.ticks[i])
	}
	return out
}

func (h *TickHistory) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ticks)
}
