package loader

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/freewebtopdf/find-related/internal/domain"
)

//go:embed embedded/rulesets.json
var builtinRulesets []byte

// BuiltinRulesets parses the rulesets bundled with the binary
func BuiltinRulesets() ([]domain.Ruleset, error) {
	return ParseRulesets(builtinRulesets)
}

// ParseRulesets parses a JSON array of rulesets
func ParseRulesets(data []byte) ([]domain.Ruleset, error) {
	var rulesets []domain.Ruleset
	if err := json.Unmarshal(data, &rulesets); err != nil {
		return nil, fmt.Errorf("failed to parse built-in rulesets: %w", err)
	}
	return rulesets, nil
}

// Names returns the names of rulesets in order
func Names(rulesets []domain.Ruleset) []string {
	names := make([]string, 0, len(rulesets))
	for _, rs := range rulesets {
		names = append(names, rs.Name)
	}
	return names
}
