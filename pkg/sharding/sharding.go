// Package sharding spreads entity processing across sub-windows of a
// recurring 15-minute period. Each entity hashes to a fixed shard; a tick
// only processes entities whose shard matches the current time window, so
// one polling schedule behaves like shardCount staggered ones.
package sharding

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"time"
)

// PeriodMinutes is the length of the recurring scheduling period.
const PeriodMinutes = 15

// Assign returns the shard index for an entity code, in [0, shardCount).
// Stable for a given shardCount; changing shardCount reshuffles all
// entities (plain modulo, no consistent hashing).
func Assign(corpCode string, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	sum := md5.Sum([]byte(corpCode))
	digest := hex.EncodeToString(sum[:])
	n, _ := strconv.ParseUint(digest[:8], 16, 64)
	return int(n % uint64(shardCount))
}

// CurrentWindow returns which sub-window of the 15-minute period now falls
// in. Windows are floor(15/shardCount) minutes wide; the last window
// absorbs any remainder minutes.
func CurrentWindow(now time.Time, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	minute := now.Minute() % PeriodMinutes
	windowSize := PeriodMinutes / shardCount
	window := minute / windowSize
	if window >= shardCount {
		window = shardCount - 1
	}
	return window
}

// ShouldProcessNow reports whether the entity's shard matches the current
// time window.
func ShouldProcessNow(corpCode string, now time.Time, shardCount int) bool {
	return Assign(corpCode, shardCount) == CurrentWindow(now, shardCount)
}

// WindowRange returns the inclusive minute range covered by a shard's
// window within the period.
func WindowRange(shard, shardCount int) (start, end int) {
	if shardCount <= 1 {
		return 0, PeriodMinutes - 1
	}
	windowSize := PeriodMinutes / shardCount
	start = shard * windowSize
	end = (shard+1)*windowSize - 1
	if shard == shardCount-1 {
		end = PeriodMinutes - 1
	}
	return start, end
}

// Distribution maps each shard to the entity codes assigned to it.
func Distribution(corpCodes []string, shardCount int) map[int][]string {
	dist := make(map[int][]string, shardCount)
	for i := 0; i < shardCount; i++ {
		dist[i] = nil
	}
	for _, code := range corpCodes {
		shard := Assign(code, shardCount)
		dist[shard] = append(dist[shard], code)
	}
	return dist
}

// Status describes the active shard configuration and current window, for
// tick responses and the monitoring endpoint.
type Status struct {
	ShardCount    int    `json:"shard_count"`
	WindowSize    int    `json:"window_size_minutes"`
	CurrentWindow int    `json:"current_window"`
	WindowRange   string `json:"window_range"`
	PeriodMinute  int    `json:"period_minute"`
}

// CurrentStatus returns the Status snapshot for now.
func CurrentStatus(now time.Time, shardCount int) Status {
	if shardCount < 1 {
		shardCount = 1
	}
	window := CurrentWindow(now, shardCount)
	start, end := WindowRange(window, shardCount)
	windowSize := PeriodMinutes / shardCount
	return Status{
		ShardCount:    shardCount,
		WindowSize:    windowSize,
		CurrentWindow: window,
		WindowRange:   strconv.Itoa(start) + "~" + strconv.Itoa(end) + " min",
		PeriodMinute:  now.Minute() % PeriodMinutes,
	}
}
