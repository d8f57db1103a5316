package conflict

import (
	"github.com/freewebtopdf/find-related/internal/domain"
)

// Resolver picks the ruleset a name refers to.
// Priority order: workspace > user > builtin. Names are looked up, never merged.
type Resolver struct{}

// NewResolver creates a new precedence resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the ruleset that name resolves to. Within one scope the
// first ruleset with the name wins.
func (r *Resolver) Resolve(name string, layers Layers) (Scoped, bool) {
	for _, s := range layers.ordered() {
		if rs := domain.FindRuleset(s.rulesets, name); rs != nil {
			return Scoped{Ruleset: *rs, Source: s.source}, true
		}
	}
	return Scoped{}, false
}

// ResolveApplied resolves every applied name in order. Unresolved names are
// skipped and returned separately.
func (r *Resolver) ResolveApplied(applied []string, layers Layers) (resolved []Scoped, missing []string) {
	resolved = make([]Scoped, 0, len(applied))
	for _, name := range applied {
		scoped, ok := r.Resolve(name, layers)
		if !ok {
			missing = append(missing, name)
			continue
		}
		resolved = append(resolved, scoped)
	}
	return resolved, missing
}
