package resolver

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/paths"
	"github.com/freewebtopdf/find-related/internal/registry"
	"github.com/freewebtopdf/find-related/internal/rule"
)

// RuleSource publishes the active rule list
type RuleSource interface {
	Snapshot() (*registry.Snapshot, bool)
}

// ServiceConfig holds defaults applied to every resolution
type ServiceConfig struct {
	DefaultRoot string
	MaxResults  int
}

// Service resolves the related files of one file name
type Service struct {
	rules  RuleSource
	driver *Driver
	config ServiceConfig

	requests    atomic.Int64
	found       atomic.Int64
	noMatch     atomic.Int64
	noFiles     atomic.Int64
	unavailable atomic.Int64
	failed      atomic.Int64
}

// NewService creates a new Service
func NewService(rules RuleSource, driver *Driver, config ServiceConfig) *Service {
	return &Service{rules: rules, driver: driver, config: config}
}

// FindRelated matches fileName against the active rule list and runs the
// lookups of every matching rule. The file name may be absolute or relative
// to rootPath; an empty rootPath falls back to the configured default.
func (s *Service) FindRelated(ctx context.Context, fileName, rootPath string, doc domain.Document) (*domain.RelatedResult, error) {
	s.requests.Add(1)
	start := time.Now()

	if rootPath == "" {
		rootPath = s.config.DefaultRoot
	}
	rootPath = paths.Normalize(rootPath)
	name := paths.Clean(paths.Relative(rootPath, fileName))

	snap, ok := s.rules.Snapshot()
	if !ok {
		s.unavailable.Add(1)
		return nil, domain.NewAppError(domain.ErrSettingsUnavailable, "Rules have not been compiled; check the settings files", 503, nil).WithContext(ctx, "find_related")
	}

	matched := snap.ProvideRules(name)
	if len(matched) == 0 {
		s.noMatch.Add(1)
		log.Debug().Str("file", name).Msg("No matching rules")
		return &domain.RelatedResult{
			FileName: name,
			Outcome:  domain.OutcomeNoMatchingRules,
			Files:    []string{},
			Duration: time.Since(start),
		}, nil
	}

	if doc.FileName == "" {
		doc.FileName = name
	}
	req := rule.Request{
		FileName:   name,
		Document:   doc,
		RootPath:   rootPath,
		Excludes:   snap.Excludes,
		MaxResults: s.config.MaxResults,
	}

	result := s.driver.GetRelatedFiles(ctx, matched, req)
	if err := ctx.Err(); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrTimeout, "Resolution cancelled", 408, err, nil).WithContext(ctx, "find_related")
	}

	s.failed.Add(int64(result.FailedLookups))
	if result.Found() {
		s.found.Add(1)
	} else {
		s.noFiles.Add(1)
	}
	result.Duration = time.Since(start)

	log.Debug().
		Str("file", name).
		Str("outcome", string(result.Outcome)).
		Int("rules", result.MatchedRules).
		Int("lookups", result.Lookups).
		Int("failed", result.FailedLookups).
		Int("files", len(result.Files)).
		Dur("duration", result.Duration).
		Msg("Resolved related files")

	return result, nil
}

// GetStats returns resolution counters
func (s *Service) GetStats(ctx context.Context) map[string]any {
	return map[string]any{
		"requests":          s.requests.Load(),
		"found":             s.found.Load(),
		"no_matching_rules": s.noMatch.Load(),
		"no_related_files":  s.noFiles.Load(),
		"unavailable":       s.unavailable.Load(),
		"failed_lookups":    s.failed.Load(),
		"max_concurrent":    s.driver.config.MaxConcurrent,
	}
}
