package domain

import "context"

// FileFinder defines the contract for glob-based file enumeration under a root
type FileFinder interface {
	FindFiles(ctx context.Context, pattern, rootPath string, excludes Excludes, maxResults int) ([]string, error)
}

// SettingsSource defines the contract for reading the current configuration surface
type SettingsSource interface {
	// Settings returns the current settings, or false when none were ever loaded
	Settings(ctx context.Context) (Settings, bool)
	Builtins(ctx context.Context) []Ruleset

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
	GetStats(ctx context.Context) map[string]any
}

// RuleProvider defines the contract for the ruleset registry
type RuleProvider interface {
	Recompile(ctx context.Context) error
	Rulesets(ctx context.Context) []RulesetInfo

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
	GetStats(ctx context.Context) map[string]any
}

// CacheManager defines the contract for cache monitoring operations
type CacheManager interface {
	Clear()
	Stats() CacheStats

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
}

// HealthChecker defines the interface for system health monitoring
type HealthChecker interface {
	CheckHealth(ctx context.Context) SystemHealth
	CheckComponent(ctx context.Context, component string) HealthStatus
}

// Validator defines the interface for input validation
type Validator interface {
	ValidateRuleset(ruleset *Ruleset) error
	ValidateSettings(settings *Settings) error
	ValidateFileName(fileName string) error
}
