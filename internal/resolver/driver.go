// Package resolver runs the lookups of matched rules and merges their results.
package resolver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/paths"
	"github.com/freewebtopdf/find-related/internal/registry"
	"github.com/freewebtopdf/find-related/internal/rule"
)

// DefaultMaxConcurrent bounds in-flight lookups when no limit is configured
const DefaultMaxConcurrent = 16

// DriverConfig tunes lookup execution
type DriverConfig struct {
	MaxConcurrent int
	LookupTimeout time.Duration
}

// Driver executes lookups with all-settled semantics
type Driver struct {
	config DriverConfig
}

// NewDriver creates a new Driver
func NewDriver(config DriverConfig) *Driver {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Driver{config: config}
}

// GetRelatedFiles runs every lookup of the matched rules concurrently, waits
// for all of them to settle and merges the successful results in lookup order.
// A failing lookup is logged and counted; it never aborts its siblings.
func (d *Driver) GetRelatedFiles(ctx context.Context, matched []registry.Matched, req rule.Request) *domain.RelatedResult {
	start := time.Now()

	var lookups []rule.Lookup
	for lookup := range registry.ResolveRules(matched, req) {
		lookups = append(lookups, lookup)
	}

	results := make([][]string, len(lookups))
	var failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(d.config.MaxConcurrent)

	for i, lookup := range lookups {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					log.Error().
						Str("ruleset", lookup.Ruleset).
						Str("pattern", lookup.Pattern).
						Str("panic", fmt.Sprint(r)).
						Msg("Lookup panicked")
				}
			}()

			lookupCtx := ctx
			if d.config.LookupTimeout > 0 {
				var cancel context.CancelFunc
				lookupCtx, cancel = context.WithTimeout(ctx, d.config.LookupTimeout)
				defer cancel()
			}

			files, err := lookup.Run(lookupCtx)
			if err != nil {
				failed.Add(1)
				log.Warn().
					Err(err).
					Str("ruleset", lookup.Ruleset).
					Str("pattern", lookup.Pattern).
					Str("file", req.FileName).
					Msg("Lookup failed")
				return nil
			}
			results[i] = files
			return nil
		})
	}
	// Lookups record their own failures and always return nil.
	_ = g.Wait()

	files := merge(req.RootPath, req.FileName, results)

	result := &domain.RelatedResult{
		FileName:      req.FileName,
		Outcome:       domain.OutcomeFound,
		Files:         files,
		MatchedRules:  len(matched),
		Lookups:       len(lookups),
		FailedLookups: int(failed.Load()),
		Duration:      time.Since(start),
	}
	if len(files) == 0 {
		result.Outcome = domain.OutcomeNoRelatedFiles
	}
	return result
}

// merge flattens results in order, cleans each path relative to root,
// drops the originating file and removes duplicates
func merge(root, fileName string, results [][]string) []string {
	self := paths.Relative(root, fileName)
	seen := make(map[string]struct{})
	files := make([]string, 0)

	for _, batch := range results {
		for _, f := range batch {
			p := paths.Clean(paths.Relative(root, f))
			if p == "" || p == "." || paths.Equal(p, self) {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}
	return files
}
