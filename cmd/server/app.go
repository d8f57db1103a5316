package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/cache"
	"github.com/freewebtopdf/find-related/internal/config"
	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/finder"
	"github.com/freewebtopdf/find-related/internal/health"
	"github.com/freewebtopdf/find-related/internal/loader"
	"github.com/freewebtopdf/find-related/internal/registry"
	"github.com/freewebtopdf/find-related/internal/resolver"
	"github.com/freewebtopdf/find-related/internal/rule"
	"github.com/freewebtopdf/find-related/internal/storage"
)

// components holds the wired service graph shared by server and one-shot modes
type components struct {
	store     *storage.Store
	cache     *cache.PatternCache
	registry  *registry.Registry
	service   *resolver.Service
	health    *health.SystemHealthChecker
	validator domain.Validator
}

func newComponents(cfg *config.Config) (*components, error) {
	builtins, err := loader.BuiltinRulesets()
	if err != nil {
		return nil, err
	}

	store := storage.NewStore(storage.StoreConfig{
		UserFile:      cfg.Settings.UserFile,
		WorkspaceRoot: cfg.Settings.WorkspaceRoot,
	}, builtins)

	patternCache := cache.NewPatternCache(cfg.Cache.PatternCacheSize)

	reg := registry.NewRegistry(store, finder.NewGlobFinder(cfg.Settings.WorkspaceRoot), rule.Options{
		MatchTimeout: cfg.Resolution.RegexMatchTimeout,
		Cache:        patternCache,
	})

	driver := resolver.NewDriver(resolver.DriverConfig{
		MaxConcurrent: cfg.Resolution.MaxConcurrent,
		LookupTimeout: cfg.Resolution.LookupTimeout,
	})
	service := resolver.NewService(reg, driver, resolver.ServiceConfig{
		DefaultRoot: cfg.Settings.WorkspaceRoot,
		MaxResults:  cfg.Resolution.MaxResults,
	})

	return &components{
		store:     store,
		cache:     patternCache,
		registry:  reg,
		service:   service,
		health:    health.NewSystemHealthChecker(store, reg, patternCache, service),
		validator: domain.NewValidator(),
	}, nil
}

// reload rereads the settings files and recompiles the active rule list.
// A settings file that fails to load keeps the previous settings in effect.
func (c *components) reload(ctx context.Context) error {
	start := time.Now()

	loadErr := c.store.Load(ctx)
	for _, le := range c.store.GetLoadErrors() {
		log.Warn().Str("file", le.FilePath).Int("line", le.Line).Str("error", le.Error).Msg("Settings file not loaded")
	}

	compileErr := c.registry.Recompile(ctx)
	c.health.Invalidate()

	err := errors.Join(loadErr, compileErr)
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Settings reload finished with errors")
		return err
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Settings reloaded")
	return nil
}

// watch reloads on settings file changes until ctx is cancelled
func (c *components) watch(ctx context.Context, debounce time.Duration) error {
	w, err := loader.NewWatcher(c.store.Candidates(), debounce, func(ctx context.Context) {
		_ = c.reload(ctx)
	})
	if err != nil {
		return err
	}
	go w.Run(ctx)
	return nil
}
