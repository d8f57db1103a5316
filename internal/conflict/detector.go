// Package conflict resolves ruleset names across the workspace, user and
// built-in scopes and reports which definitions are shadowed.
package conflict

import (
	"slices"

	"github.com/freewebtopdf/find-related/internal/domain"
)

// ConflictInfo describes a ruleset name defined in more than one place
type ConflictInfo struct {
	Name         string              `json:"name"`
	Sources      []domain.SourceType `json:"sources"`
	ActiveSource domain.SourceType   `json:"active_source"`
}

// Detector identifies ruleset names defined more than once
type Detector struct{}

// NewDetector creates a new conflict detector
func NewDetector() *Detector {
	return &Detector{}
}

// DetectConflicts returns every name defined more than once across all
// scopes, keyed by name. Sources are listed in precedence order.
func (d *Detector) DetectConflicts(layers Layers) map[string]ConflictInfo {
	byName := make(map[string][]domain.SourceType)
	for _, scoped := range layers.all() {
		byName[scoped.Ruleset.Name] = append(byName[scoped.Ruleset.Name], scoped.Source)
	}

	conflicts := make(map[string]ConflictInfo)
	for name, sources := range byName {
		if len(sources) > 1 {
			conflicts[name] = ConflictInfo{
				Name:         name,
				Sources:      sources,
				ActiveSource: sources[0],
			}
		}
	}
	return conflicts
}

// Describe reports every configured ruleset: whether an applied name selects
// it and, if not the winner for its name, which scope shadows it
func (d *Detector) Describe(layers Layers, applied []string) []domain.RulesetInfo {
	seen := make(map[string]domain.SourceType)
	var infos []domain.RulesetInfo

	for _, scoped := range layers.all() {
		name := scoped.Ruleset.Name
		info := domain.RulesetInfo{
			Name:      name,
			Source:    scoped.Source,
			RuleCount: len(scoped.Ruleset.Rules),
		}

		if winner, ok := seen[name]; ok {
			info.Shadowed = true
			info.ShadowedBy = winner
		} else {
			seen[name] = scoped.Source
			info.Applied = slices.Contains(applied, name)
		}
		infos = append(infos, info)
	}
	return infos
}
