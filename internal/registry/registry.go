// Package registry compiles the active rule list from configured and
// registered rulesets and publishes it as an immutable snapshot.
package registry

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/conflict"
	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/rule"
)

// Snapshot is one published active rule list. It is never mutated after
// publication; a recompile publishes a new one.
type Snapshot struct {
	Rules      []rule.Rule
	Excludes   domain.Excludes
	Failures   int
	Conflicts  map[string]conflict.ConflictInfo
	Generation uint64
	CompiledAt time.Time
}

// Matched pairs a rule with the match it produced for one file name
type Matched struct {
	Rule  rule.Rule
	Match rule.Match
}

// ProvideRules returns the rules that match fileName, in list order
func (s *Snapshot) ProvideRules(fileName string) []Matched {
	if s == nil {
		return nil
	}
	var matched []Matched
	for _, r := range s.Rules {
		if m, ok := r.Match(fileName); ok {
			matched = append(matched, Matched{Rule: r, Match: m})
		}
	}
	return matched
}

// ResolveRules concatenates, in rule order, the lazy lookup sequences of every matched rule
func ResolveRules(matched []Matched, req rule.Request) iter.Seq[rule.Lookup] {
	return func(yield func(rule.Lookup) bool) {
		for _, m := range matched {
			for lookup := range m.Rule.ProvideRelated(m.Match, req) {
				if !yield(lookup) {
					return
				}
			}
		}
	}
}

// Registry holds the configured and registered rulesets and the current snapshot
type Registry struct {
	source   domain.SettingsSource
	finder   domain.FileFinder
	opts     rule.Options
	resolver *conflict.Resolver
	detector *conflict.Detector

	// compileMu serializes recompiles so snapshots publish in order
	compileMu  sync.Mutex
	generation uint64

	regMu      sync.RWMutex
	registered []*Registration

	snapshot atomic.Pointer[Snapshot]
	lastErr  atomic.Pointer[error]
}

// NewRegistry creates a new Registry. Nothing is compiled until Recompile or
// RegisterRuleset is called.
func NewRegistry(source domain.SettingsSource, finder domain.FileFinder, opts rule.Options) *Registry {
	return &Registry{
		source:   source,
		finder:   finder,
		opts:     opts,
		resolver: conflict.NewResolver(),
		detector: conflict.NewDetector(),
	}
}

// Snapshot returns the current active rule list, or false if none was ever compiled
func (r *Registry) Snapshot() (*Snapshot, bool) {
	s := r.snapshot.Load()
	return s, s != nil
}

// ProvideRules filters the current active rule list by fileName
func (r *Registry) ProvideRules(fileName string) []Matched {
	return r.snapshot.Load().ProvideRules(fileName)
}

// ResolveRules concatenates the lookup sequences of matched rules
func (r *Registry) ResolveRules(matched []Matched, req rule.Request) iter.Seq[rule.Lookup] {
	return ResolveRules(matched, req)
}

// Recompile rebuilds the active rule list from the current settings and
// registrations and publishes it atomically
func (r *Registry) Recompile(ctx context.Context) error {
	r.compileMu.Lock()
	defer r.compileMu.Unlock()

	select {
	case <-ctx.Done():
		return domain.NewAppErrorWithCause(domain.ErrTimeout, "Recompile cancelled", 408, ctx.Err(), nil).WithContext(ctx, "recompile")
	default:
	}

	settings, ok := r.source.Settings(ctx)
	if !ok {
		err := domain.NewAppError(domain.ErrSettingsUnavailable, "Settings are not available", 503, nil).WithContext(ctx, "recompile")
		r.setLastErr(err)
		return err
	}

	start := time.Now()
	layers := conflict.NewLayers(settings, r.source.Builtins(ctx))
	resolved, missing := r.resolver.ResolveApplied(settings.Applied(), layers)
	conflicts := r.detector.DetectConflicts(layers)
	for _, name := range slices.Sorted(maps.Keys(conflicts)) {
		c := conflicts[name]
		log.Debug().Str("ruleset", name).Str("active_source", string(c.ActiveSource)).Int("definitions", len(c.Sources)).Msg("Ruleset name defined in multiple scopes")
	}

	var rules []rule.Rule
	failures := 0

	for _, scoped := range resolved {
		for _, def := range scoped.Ruleset.Rules {
			compiled, err := rule.Compile(def, scoped.Ruleset.Name, r.finder, r.opts)
			if err != nil {
				failures++
				log.Error().Err(err).Str("ruleset", scoped.Ruleset.Name).Str("source", string(scoped.Source)).Str("pattern", def.Pattern).Msg("Skipping rule with invalid pattern")
				continue
			}
			rules = append(rules, compiled)
		}
	}

	registrations := r.registrations()
	for _, reg := range registrations {
		for _, entry := range reg.entries {
			switch entry.Kind {
			case domain.EntryDynamic:
				if entry.Dynamic == nil {
					failures++
					log.Warn().Str("ruleset", reg.name).Msg("Skipping dynamic rule without implementation")
					continue
				}
				rules = append(rules, rule.Dynamic(entry.Dynamic, reg.name))
			default:
				compiled, err := rule.Compile(entry.Definition, reg.name, r.finder, r.opts)
				if err != nil {
					failures++
					log.Error().Err(err).Str("ruleset", reg.name).Str("source", string(domain.SourceRegistered)).Str("pattern", entry.Definition.Pattern).Msg("Skipping rule with invalid pattern")
					continue
				}
				rules = append(rules, compiled)
			}
		}
	}

	if len(rules) == 0 {
		log.Warn().Msg("No active rulesets found")
	}
	if len(missing) > 0 {
		log.Debug().Strs("rulesets", missing).Msg("Applied rulesets not found")
	}

	r.generation++
	r.snapshot.Store(&Snapshot{
		Rules:      rules,
		Excludes:   settings.ResolveExcludes(),
		Failures:   failures,
		Conflicts:  conflicts,
		Generation: r.generation,
		CompiledAt: time.Now(),
	})
	r.lastErr.Store(nil)

	log.Info().
		Int("rules", len(rules)).
		Int("rulesets", len(resolved)).
		Int("registered", len(registrations)).
		Int("failures", failures).
		Int("conflicts", len(conflicts)).
		Uint64("generation", r.generation).
		Dur("duration", time.Since(start)).
		Msg("Rules compiled")

	return nil
}

func (r *Registry) setLastErr(err error) {
	r.lastErr.Store(&err)
}

// Rulesets reports every configured ruleset with its scope and status, then
// every registered ruleset
func (r *Registry) Rulesets(ctx context.Context) []domain.RulesetInfo {
	var infos []domain.RulesetInfo

	if settings, ok := r.source.Settings(ctx); ok {
		layers := conflict.NewLayers(settings, r.source.Builtins(ctx))
		infos = r.detector.Describe(layers, settings.Applied())
	}

	for _, reg := range r.registrations() {
		infos = append(infos, domain.RulesetInfo{
			Name:      reg.name,
			Source:    domain.SourceRegistered,
			RuleCount: len(reg.entries),
			Applied:   true,
			ID:        reg.id,
		})
	}
	return infos
}

// HealthCheck performs a health check on the registry
func (r *Registry) HealthCheck(ctx context.Context) domain.HealthStatus {
	now := time.Now()
	status := domain.HealthStatusHealthy
	message := "Registry is operating normally"
	details := map[string]any{
		"registered_rulesets": len(r.registrations()),
	}

	snap, ok := r.Snapshot()
	switch {
	case !ok:
		status = domain.HealthStatusUnhealthy
		message = "No rules have been compiled"
		if errp := r.lastErr.Load(); errp != nil && *errp != nil {
			details["error"] = (*errp).Error()
		}
	default:
		details["rule_count"] = len(snap.Rules)
		details["generation"] = snap.Generation
		details["compiled_at"] = snap.CompiledAt
		if len(snap.Rules) == 0 {
			status = domain.HealthStatusDegraded
			message = "No active rulesets found"
		}
		if snap.Failures > 0 {
			status = domain.HealthStatusDegraded
			message = "Some rules failed to compile"
			details["invalid_rules"] = snap.Failures
		}
		if errp := r.lastErr.Load(); errp != nil && *errp != nil {
			status = domain.HealthStatusDegraded
			message = "Last recompile failed; serving previous rules"
			details["error"] = (*errp).Error()
		}
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: now,
	}
}

// GetStats returns registry statistics
func (r *Registry) GetStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"registered_rulesets": len(r.registrations()),
	}

	snap, ok := r.Snapshot()
	if !ok {
		stats["rule_count"] = 0
		return stats
	}

	kinds := make(map[string]int)
	rulesets := make(map[string]int)
	for _, rl := range snap.Rules {
		kinds[rl.Kind()]++
		rulesets[rl.Ruleset()]++
	}

	stats["rule_count"] = len(snap.Rules)
	stats["rule_kinds"] = kinds
	stats["rules_per_ruleset"] = rulesets
	stats["invalid_rules"] = snap.Failures
	stats["ruleset_conflicts"] = len(snap.Conflicts)
	stats["generation"] = snap.Generation
	stats["excludes"] = snap.Excludes.Mode
	stats["compiled_at"] = snap.CompiledAt
	return stats
}

// Registration is the handle returned by RegisterRuleset
type Registration struct {
	id       string
	name     string
	entries  []domain.RuleEntry
	registry *Registry
	once     sync.Once
}

// ID returns the registration id
func (reg *Registration) ID() string { return reg.id }

// Name returns the registered ruleset name
func (reg *Registration) Name() string { return reg.name }

// Dispose removes exactly this registration and recompiles. Later calls do nothing.
func (reg *Registration) Dispose() {
	reg.once.Do(func() {
		if reg.registry.remove(reg) {
			reg.registry.recompileAfterRegistration("unregister", reg)
		}
	})
}

// RegisterRuleset appends a registered ruleset and recompiles. Names need not
// be unique; every registration is always part of the active list.
func (r *Registry) RegisterRuleset(name string, entries ...domain.RuleEntry) *Registration {
	reg := &Registration{
		id:       uuid.New().String(),
		name:     name,
		entries:  slices.Clone(entries),
		registry: r,
	}

	r.regMu.Lock()
	r.registered = append(r.registered, reg)
	r.regMu.Unlock()

	r.recompileAfterRegistration("register", reg)
	return reg
}

// RegisterDefinitions registers static rules and returns the registration id
func (r *Registry) RegisterDefinitions(name string, defs []domain.RuleDefinition) string {
	return r.RegisterRuleset(name, domain.StaticEntries(defs)...).ID()
}

// Lookup returns the live registration with the given id
func (r *Registry) Lookup(id string) (*Registration, bool) {
	r.regMu.RLock()
	defer r.regMu.RUnlock()

	for _, reg := range r.registered {
		if reg.id == id {
			return reg, true
		}
	}
	return nil, false
}

// Unregister disposes the registration with the given id
func (r *Registry) Unregister(id string) error {
	reg, ok := r.Lookup(id)
	if !ok {
		return domain.NewAppError(domain.ErrNotFound, "Registration not found", 404, map[string]any{"id": id})
	}
	reg.Dispose()
	return nil
}

func (r *Registry) remove(reg *Registration) bool {
	r.regMu.Lock()
	defer r.regMu.Unlock()

	i := slices.Index(r.registered, reg)
	if i < 0 {
		return false
	}
	r.registered = slices.Delete(r.registered, i, i+1)
	return true
}

func (r *Registry) registrations() []*Registration {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	return slices.Clone(r.registered)
}

func (r *Registry) recompileAfterRegistration(op string, reg *Registration) {
	if err := r.Recompile(context.Background()); err != nil {
		log.Debug().Err(err).Str("op", op).Str("ruleset", reg.name).Msg("Recompile deferred until settings load")
	}
}
