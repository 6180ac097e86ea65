package models

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	Engine       string       `json:"engine"`
	LimiterStats LimiterStats `json:"limiter"`
	HostMemPct   float64      `json:"host_memory_percent,omitempty"`
	Version      string       `json:"version"`
}

// LimiterStats reports the state of the concurrency limiter.
type LimiterStats struct {
	Capacity int `json:"capacity"`
	InFlight int `json:"in_flight"`
	Peak     int `json:"peak"`
}
