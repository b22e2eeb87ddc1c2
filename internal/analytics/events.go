// Package analytics collects search usage events and ships them to Kafka for
// offline analysis.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
	EventIndexBuilt EventType = "index_built"
)

// SearchEvent records one query handled by the aggregator.
type SearchEvent struct {
	Type              EventType `json:"type"`
	Query             string    `json:"query"`
	Weight            float64   `json:"weight"`
	SearchMode        string    `json:"search_mode"`
	Returned          int       `json:"returned"`
	ShardCount        int       `json:"shard_count"`
	ShardFailures     int       `json:"shard_failures"`
	SemanticAvailable bool      `json:"semantic_available"`
	CacheHit          bool      `json:"cache_hit"`
	LatencyMs         int64     `json:"latency_ms"`
	Timestamp         time.Time `json:"timestamp"`
	RequestID         string    `json:"request_id"`
}

// IndexEvent records one completed offline index build.
type IndexEvent struct {
	Type       EventType `json:"type"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	ShardCount int       `json:"shard_count"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
