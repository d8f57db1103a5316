package health

import (
	"context"
	"sync"
	"time"

	"github.com/freewebtopdf/find-related/internal/domain"
)

// StatsSource reports counters without a health status of its own
type StatsSource interface {
	GetStats(ctx context.Context) map[string]any
}

// SystemHealthChecker aggregates the health of the settings store, the rule
// registry and the pattern cache
type SystemHealthChecker struct {
	settings   domain.SettingsSource
	registry   domain.RuleProvider
	cache      domain.CacheManager
	resolution StatsSource

	timeout   time.Duration
	startTime time.Time

	// Cached health status to avoid recomputing on every check
	lastCheck   time.Time
	lastHealth  domain.SystemHealth
	cacheTTL    time.Duration
	healthMutex sync.Mutex
}

// NewSystemHealthChecker creates a new system health checker. resolution may be nil.
func NewSystemHealthChecker(
	settings domain.SettingsSource,
	registry domain.RuleProvider,
	cache domain.CacheManager,
	resolution StatsSource,
) *SystemHealthChecker {
	return &SystemHealthChecker{
		settings:   settings,
		registry:   registry,
		cache:      cache,
		resolution: resolution,
		timeout:    5 * time.Second,
		cacheTTL:   5 * time.Second,
		startTime:  time.Now(),
	}
}

// CheckHealth performs a system health check. Results are cached briefly.
func (h *SystemHealthChecker) CheckHealth(ctx context.Context) domain.SystemHealth {
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()

	if !h.lastCheck.IsZero() && time.Since(h.lastCheck) < h.cacheTTL {
		return h.lastHealth
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	now := time.Now()
	components := map[string]domain.HealthStatus{
		"settings": h.settings.HealthCheck(checkCtx),
		"registry": h.registry.HealthCheck(checkCtx),
		"cache":    h.cache.HealthCheck(checkCtx),
	}

	overallStatus := domain.HealthStatusHealthy
	for _, status := range components {
		overallStatus = aggregateStatus(overallStatus, status.Status)
	}

	systemHealth := domain.SystemHealth{
		Status:     overallStatus,
		Timestamp:  now,
		Components: components,
		Metrics:    h.collectMetrics(checkCtx),
		Uptime:     time.Since(h.startTime),
	}

	h.lastCheck = now
	h.lastHealth = systemHealth
	return systemHealth
}

// Invalidate drops the cached result so the next check runs fresh
func (h *SystemHealthChecker) Invalidate() {
	h.healthMutex.Lock()
	h.lastCheck = time.Time{}
	h.healthMutex.Unlock()
}

// CheckComponent performs a health check on a specific component
func (h *SystemHealthChecker) CheckComponent(ctx context.Context, component string) domain.HealthStatus {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	switch component {
	case "settings":
		return h.settings.HealthCheck(checkCtx)
	case "registry":
		return h.registry.HealthCheck(checkCtx)
	case "cache":
		return h.cache.HealthCheck(checkCtx)
	default:
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Unknown component",
			Timestamp: time.Now(),
			Details: map[string]any{
				"component": component,
				"error":     "Component not found",
			},
		}
	}
}

// aggregateStatus returns the worse of two statuses: unhealthy > degraded > healthy
func aggregateStatus(current, componentStatus string) string {
	statusPriority := map[string]int{
		domain.HealthStatusHealthy:   0,
		domain.HealthStatusDegraded:  1,
		domain.HealthStatusUnhealthy: 2,
	}

	if statusPriority[componentStatus] > statusPriority[current] {
		return componentStatus
	}
	return current
}

func (h *SystemHealthChecker) collectMetrics(ctx context.Context) map[string]any {
	metrics := make(map[string]any)

	if stats := h.settings.GetStats(ctx); stats != nil {
		metrics["settings"] = stats
	}
	if stats := h.registry.GetStats(ctx); stats != nil {
		metrics["registry"] = stats
	}
	if h.resolution != nil {
		if stats := h.resolution.GetStats(ctx); stats != nil {
			metrics["resolution"] = stats
		}
	}

	cacheStats := h.cache.Stats()
	metrics["cache"] = map[string]any{
		"hits":      cacheStats.Hits,
		"misses":    cacheStats.Misses,
		"size":      cacheStats.Size,
		"max_size":  cacheStats.MaxSize,
		"hit_ratio": cacheStats.HitRatio,
	}

	metrics["system"] = map[string]any{
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"timestamp":      time.Now(),
	}
	return metrics
}

// IsHealthy reports whether every component is healthy
func (h *SystemHealthChecker) IsHealthy(ctx context.Context) bool {
	return h.CheckHealth(ctx).Status == domain.HealthStatusHealthy
}
