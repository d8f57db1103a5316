package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/loader"
)

// StoreConfig holds configuration for the Store
type StoreConfig struct {
	UserFile      string
	WorkspaceRoot string
}

// Store owns the current settings snapshot and the built-in rulesets.
// Snapshots are replaced on reload, never mutated.
type Store struct {
	mu         sync.RWMutex
	settings   *domain.Settings
	builtins   []domain.Ruleset
	loadedAt   time.Time
	loadErrors []loader.LoadError
	config     StoreConfig

	settingsLoader loader.SettingsLoader
}

// NewStore creates a new Store reading settings files per config
func NewStore(config StoreConfig, builtins []domain.Ruleset) *Store {
	scanConfig := loader.ScanConfig{
		UserFile:      config.UserFile,
		WorkspaceRoot: config.WorkspaceRoot,
	}
	s := NewStoreWithLoader(loader.NewFileSettingsLoader(scanConfig, nil), builtins)
	s.config = config
	return s
}

// NewStoreWithLoader creates a new Store backed by the given loader
func NewStoreWithLoader(settingsLoader loader.SettingsLoader, builtins []domain.Ruleset) *Store {
	return &Store{
		builtins:       builtins,
		settingsLoader: settingsLoader,
	}
}

// Load reads the settings files. When a file fails to load and a previous
// snapshot exists, the previous snapshot stays in effect.
func (s *Store) Load(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return domain.NewAppErrorWithCause(
			domain.ErrTimeout,
			"Load cancelled",
			408,
			ctx.Err(),
			map[string]any{"operation": "load"},
		)
	default:
	}

	settings, loadErrors, err := s.settingsLoader.Load(ctx, loader.Names(s.builtins))
	if err != nil {
		return domain.NewAppErrorWithCause(
			domain.ErrSettingsUnavailable,
			"Failed to read settings",
			503,
			err,
			nil,
		).WithContext(ctx, "load")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadErrors = loadErrors
	if len(loadErrors) > 0 && s.settings != nil {
		log.Warn().Int("errors", len(loadErrors)).Msg("Keeping previous settings after load errors")
		return domain.NewAppError(
			domain.ErrSettingsInvalid,
			"Settings file could not be loaded; previous settings kept",
			422,
			map[string]any{"errors": loadErrors},
		).WithContext(ctx, "load")
	}

	s.settings = &settings
	s.loadedAt = time.Now()
	return nil
}

// Reload reloads settings from disk
func (s *Store) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Settings returns the current snapshot, or false when nothing was ever loaded
func (s *Store) Settings(ctx context.Context) (domain.Settings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return domain.Settings{}, false
	}
	return *s.settings, true
}

// Builtins returns the built-in rulesets
func (s *Store) Builtins(ctx context.Context) []domain.Ruleset {
	return s.builtins
}

// Candidates returns every path a settings file may appear at
func (s *Store) Candidates() []loader.ScannedFile {
	return s.settingsLoader.Candidates()
}

// GetLoadErrors returns any errors from the last load operation
func (s *Store) GetLoadErrors() []loader.LoadError {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]loader.LoadError, len(s.loadErrors))
	copy(result, s.loadErrors)
	return result
}

// HealthCheck performs a health check on the settings store
func (s *Store) HealthCheck(ctx context.Context) domain.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	status := domain.HealthStatusHealthy
	message := "Settings are loaded"
	details := map[string]any{
		"builtin_rulesets": len(s.builtins),
		"load_errors":      len(s.loadErrors),
		"workspace_root":   s.config.WorkspaceRoot,
	}

	switch {
	case s.settings == nil:
		status = domain.HealthStatusUnhealthy
		message = "Settings have never been loaded"
	case len(s.loadErrors) > 0:
		status = domain.HealthStatusDegraded
		message = "Some settings files failed to load"
		details["errors"] = s.loadErrors
	default:
		details["loaded_at"] = s.loadedAt
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: now,
	}
}

// GetStats returns settings statistics
func (s *Store) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"builtin_rulesets": len(s.builtins),
		"load_errors":      len(s.loadErrors),
		"loaded":           s.settings != nil,
	}

	if s.settings != nil {
		stats["user_rulesets"] = len(s.settings.Rulesets)
		stats["workspace_rulesets"] = len(s.settings.WorkspaceRulesets)
		stats["applied"] = s.settings.Applied()
		stats["excludes"] = s.settings.ResolveExcludes().Mode
		stats["loaded_at"] = s.loadedAt
	}

	files := s.settingsLoader.GetFiles()
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	stats["settings_files"] = paths

	return stats
}
