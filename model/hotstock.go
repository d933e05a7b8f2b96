package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Promotion reasons, in trigger priority order.
const (
	ReasonImportantDisclosure = "important_disclosure"
	ReasonPriceSpike          = "price_spike"
	ReasonVolumeSpike         = "volume_spike"
)

// HotStock is an entity temporarily exempt from shard throttling. Presence
// of a live row is the hot state; there is no separate status field.
type HotStock struct {
	CorpCode         string          `json:"corp_code"`
	StockCode        string          `json:"stock_code"`
	CorpName         string          `json:"corp_name"`
	Reason           string          `json:"reason"`
	ReasonDetail     string          `json:"reason_detail,omitempty"`
	TriggerValue     decimal.Decimal `json:"trigger_value"`
	TriggerThreshold decimal.Decimal `json:"trigger_threshold"`
	PromotedAt       time.Time       `json:"promoted_at"`
	ExpiresAt        time.Time       `json:"expires_at"`
	RefreshCount     int             `json:"refresh_count"`
}

// HotStats summarizes hot-entity rows for the monitoring endpoint.
type HotStats struct {
	Active             int64 `json:"active"`
	PriceSpikes        int64 `json:"price_spikes"`
	VolumeSpikes       int64 `json:"volume_spikes"`
	DisclosureTriggers int64 `json:"disclosure_triggers"`
}
