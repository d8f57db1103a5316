package domain

import "context"

// SourceType represents the scope a ruleset was defined in
type SourceType string

const (
	// SourceBuiltin indicates a ruleset bundled with the service
	SourceBuiltin SourceType = "builtin"
	// SourceUser indicates a ruleset from the user settings file
	SourceUser SourceType = "user"
	// SourceWorkspace indicates a ruleset from the workspace settings file
	SourceWorkspace SourceType = "workspace"
	// SourceRegistered indicates a ruleset registered at runtime
	SourceRegistered SourceType = "registered"
)

// RuleDefinition is a declarative pattern plus locator templates
// @Description Regex pattern and glob locator templates
type RuleDefinition struct {
	Pattern  string   `json:"pattern" yaml:"pattern" validate:"required,max=2048" example:"(.*)\\.ts$"`
	Locators []string `json:"locators" yaml:"locators" validate:"dive,required,max=2048" example:"$1.test.ts"`
}

// Ruleset is a named collection of rule definitions
// @Description Named collection of rules
type Ruleset struct {
	Name  string           `json:"name" yaml:"name" validate:"required,max=256" example:"typescript"`
	Rules []RuleDefinition `json:"rules" yaml:"rules" validate:"dive"`
}

// FindRuleset returns the ruleset with the given name, or nil
func FindRuleset(rulesets []Ruleset, name string) *Ruleset {
	for i := range rulesets {
		if rulesets[i].Name == name {
			return &rulesets[i]
		}
	}
	return nil
}

// Document is opaque context about the file being resolved, handed to dynamic rules
type Document struct {
	FileName   string `json:"file_name"`
	LanguageID string `json:"language_id,omitempty"`
}

// DynamicRule is a programmatic matcher and resolver pair supplied by a registrant
type DynamicRule interface {
	Match(fileName string) bool
	ProvideRelated(ctx context.Context, fileName string, doc Document, rootPath string) ([]string, error)
}

// DynamicRuleFuncs adapts a pair of functions to DynamicRule
type DynamicRuleFuncs struct {
	MatchFunc   func(fileName string) bool
	ProvideFunc func(ctx context.Context, fileName string, doc Document, rootPath string) ([]string, error)
}

// Match implements DynamicRule
func (f DynamicRuleFuncs) Match(fileName string) bool {
	if f.MatchFunc == nil {
		return false
	}
	return f.MatchFunc(fileName)
}

// ProvideRelated implements DynamicRule
func (f DynamicRuleFuncs) ProvideRelated(ctx context.Context, fileName string, doc Document, rootPath string) ([]string, error) {
	if f.ProvideFunc == nil {
		return nil, nil
	}
	return f.ProvideFunc(ctx, fileName, doc, rootPath)
}

// EntryKind tags the variant held by a RuleEntry
type EntryKind string

const (
	EntryStatic  EntryKind = "static"
	EntryDynamic EntryKind = "dynamic"
)

// RuleEntry is one rule contributed through registration. Exactly one of
// Definition or Dynamic is meaningful, selected by Kind.
type RuleEntry struct {
	Kind       EntryKind
	Definition RuleDefinition
	Dynamic    DynamicRule
}

// StaticEntry wraps a rule definition for registration
func StaticEntry(def RuleDefinition) RuleEntry {
	return RuleEntry{Kind: EntryStatic, Definition: def}
}

// DynamicEntry wraps a dynamic rule for registration
func DynamicEntry(rule DynamicRule) RuleEntry {
	return RuleEntry{Kind: EntryDynamic, Dynamic: rule}
}

// StaticEntries wraps every definition of a ruleset
func StaticEntries(defs []RuleDefinition) []RuleEntry {
	entries := make([]RuleEntry, 0, len(defs))
	for _, def := range defs {
		entries = append(entries, StaticEntry(def))
	}
	return entries
}

// RulesetInfo describes a configured ruleset and how it participates in the active list
// @Description Ruleset status as seen by the registry
type RulesetInfo struct {
	Name       string     `json:"name" example:"typescript"`
	Source     SourceType `json:"source" example:"builtin"`
	RuleCount  int        `json:"rule_count" example:"2"`
	Applied    bool       `json:"applied" example:"true"`
	Shadowed   bool       `json:"shadowed" example:"false"`
	ShadowedBy SourceType `json:"shadowed_by,omitempty" example:"workspace"`
	ID         string     `json:"id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}
