package models

import "time"

// SystemMetrics is a lightweight snapshot of process telemetry served by /health.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	UpstreamCalls            uint64    `json:"upstreamCalls"`
	AverageUpstreamMs        float64   `json:"averageUpstreamMs"`
	TokenRefreshes           uint64    `json:"tokenRefreshes"`
	StaleFetchesDiscarded    uint64    `json:"staleFetchesDiscarded"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
