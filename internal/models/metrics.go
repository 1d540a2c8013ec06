package models

import "time"

// MetricsSnapshot is a point-in-time summary of process counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	TimetablesGenerated      uint64    `json:"timetables_generated"`
	ExternalFallbacks        uint64    `json:"external_fallbacks"`
	DroppedSessions          uint64    `json:"dropped_sessions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
