package conflict

import (
	"github.com/freewebtopdf/find-related/internal/domain"
)

// Layers holds the configured rulesets of every scope
type Layers struct {
	Workspace []domain.Ruleset
	User      []domain.Ruleset
	Builtin   []domain.Ruleset
}

// NewLayers builds the scope layers from settings and the built-in rulesets
func NewLayers(settings domain.Settings, builtins []domain.Ruleset) Layers {
	return Layers{
		Workspace: settings.WorkspaceRulesets,
		User:      settings.Rulesets,
		Builtin:   builtins,
	}
}

// Scoped is a ruleset together with the scope it was found in
type Scoped struct {
	Ruleset domain.Ruleset
	Source  domain.SourceType
}

// ordered returns the layers from highest to lowest precedence
func (l Layers) ordered() []scope {
	return []scope{
		{domain.SourceWorkspace, l.Workspace},
		{domain.SourceUser, l.User},
		{domain.SourceBuiltin, l.Builtin},
	}
}

type scope struct {
	source   domain.SourceType
	rulesets []domain.Ruleset
}

// all returns every configured ruleset in precedence order, duplicates included
func (l Layers) all() []Scoped {
	var out []Scoped
	for _, s := range l.ordered() {
		for _, rs := range s.rulesets {
			out = append(out, Scoped{Ruleset: rs, Source: s.source})
		}
	}
	return out
}
