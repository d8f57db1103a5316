package domain

import "time"

// Outcome distinguishes the legitimate "nothing found" cases from a real result
type Outcome string

const (
	OutcomeFound           Outcome = "found"
	OutcomeNoMatchingRules Outcome = "no_matching_rules"
	OutcomeNoRelatedFiles  Outcome = "no_related_files"
)

// RelatedResult is the merged result of resolving one file
// @Description Related files for a file name
type RelatedResult struct {
	FileName      string        `json:"file_name" example:"src/foo.ts"`
	Outcome       Outcome       `json:"outcome" example:"found"`
	Files         []string      `json:"files" example:"src/foo.test.ts"`
	MatchedRules  int           `json:"matched_rules" example:"1"`
	Lookups       int           `json:"lookups" example:"1"`
	FailedLookups int           `json:"failed_lookups" example:"0"`
	Duration      time.Duration `json:"duration" swaggertype:"integer" example:"1200000"`
}

// Found reports whether the result carries at least one related file
func (r *RelatedResult) Found() bool {
	return r != nil && r.Outcome == OutcomeFound
}

// CacheStats represents cache performance metrics
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Size     int     `json:"size"`
	MaxSize  int     `json:"max_size"`
	HitRatio float64 `json:"hit_ratio"`
}

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status    string         `json:"status"` // "healthy", "unhealthy", "degraded"
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Health status constants
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
	HealthStatusDegraded  = "degraded"
)

// SystemHealth represents overall system health
type SystemHealth struct {
	Status     string                  `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
	Metrics    map[string]any          `json:"metrics,omitempty"`
	Uptime     time.Duration           `json:"uptime"`
}
