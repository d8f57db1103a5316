package domain

import "slices"

// Settings is the configuration surface the registry compiles from
type Settings struct {
	ApplyRulesets          []string  `json:"applyRulesets" yaml:"applyRulesets"`
	ApplyWorkspaceRulesets []string  `json:"applyWorkspaceRulesets" yaml:"applyWorkspaceRulesets"`
	Rulesets               []Ruleset `json:"rulesets" yaml:"rulesets" validate:"dive"`
	WorkspaceRulesets      []Ruleset `json:"workspaceRulesets" yaml:"workspaceRulesets" validate:"dive"`
	IgnoreExcludes         bool      `json:"ignoreExcludes" yaml:"ignoreExcludes"`
	Excludes               []string  `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

// Applied returns the ordered, deduplicated union of user and workspace apply lists
func (s Settings) Applied() []string {
	applied := make([]string, 0, len(s.ApplyRulesets)+len(s.ApplyWorkspaceRulesets))
	for _, names := range [][]string{s.ApplyRulesets, s.ApplyWorkspaceRulesets} {
		for _, name := range names {
			if !slices.Contains(applied, name) {
				applied = append(applied, name)
			}
		}
	}
	return applied
}

// ResolveExcludes turns the ignoreExcludes switch and exclude list into an explicit state
func (s Settings) ResolveExcludes() Excludes {
	if s.IgnoreExcludes {
		return Excludes{Mode: ExcludeNone}
	}
	if len(s.Excludes) > 0 {
		return Excludes{Mode: ExcludePatterns, Patterns: slices.Clone(s.Excludes)}
	}
	return Excludes{Mode: ExcludeDefault}
}

// ExcludeMode distinguishes "use host defaults" from "no excludes at all"
type ExcludeMode string

const (
	// ExcludeDefault lets the file finder apply its own default excludes
	ExcludeDefault ExcludeMode = "default"
	// ExcludeNone disables every exclude
	ExcludeNone ExcludeMode = "none"
	// ExcludePatterns uses exactly the listed globs
	ExcludePatterns ExcludeMode = "patterns"
)

// Excludes is the exclude configuration handed to the file finder
type Excludes struct {
	Mode     ExcludeMode `json:"mode"`
	Patterns []string    `json:"patterns,omitempty"`
}
