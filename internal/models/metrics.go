package models

import "time"

// SystemMetrics is a JSON-friendly snapshot of the in-process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ChargesGenerated         uint64    `json:"charges_generated"`
	AlertsCreated            uint64    `json:"alerts_created"`
	AlertsUpdated            uint64    `json:"alerts_updated"`
	AlertsResolved           uint64    `json:"alerts_resolved"`
	JobFailures              uint64    `json:"job_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
