package rule

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/domain"
)

// dynamicRule adapts a registrant-supplied DynamicRule to Rule. It never
// substitutes tokens; its single lookup is the registrant's own resolver.
type dynamicRule struct {
	ruleset string
	inner   domain.DynamicRule
}

// Dynamic wraps a DynamicRule registered under rulesetName
func Dynamic(inner domain.DynamicRule, rulesetName string) Rule {
	return &dynamicRule{ruleset: rulesetName, inner: inner}
}

func (d *dynamicRule) Ruleset() string { return d.ruleset }

func (d *dynamicRule) Kind() string { return KindDynamic }

// Match delegates to the registrant. A panic is logged and treated as no match.
func (d *dynamicRule) Match(fileName string) (m Match, ok bool) {
	if d.inner == nil {
		return Match{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("ruleset", d.ruleset).
				Str("file", fileName).
				Interface("panic", r).
				Msg("Dynamic rule match panicked")
			m, ok = Match{}, false
		}
	}()

	if !d.inner.Match(fileName) {
		return Match{}, false
	}
	return Match{Groups: []string{fileName}}, true
}

// ProvideRelated yields exactly one lookup that calls the registrant's resolver
func (d *dynamicRule) ProvideRelated(m Match, req Request) iter.Seq[Lookup] {
	return func(yield func(Lookup) bool) {
		if d.inner == nil || !m.Matched() {
			return
		}
		yield(Lookup{
			Ruleset: d.ruleset,
			run: func(ctx context.Context) (files []string, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = domain.NewAppError(domain.ErrLookupFailed, "Dynamic rule panicked", 500, map[string]any{
							"ruleset": d.ruleset,
							"panic":   fmt.Sprint(r),
						})
					}
				}()

				files, err = d.inner.ProvideRelated(ctx, req.FileName, req.Document, req.RootPath)
				if err != nil {
					return nil, domain.NewAppErrorWithCause(domain.ErrLookupFailed, "Dynamic rule lookup failed", 500, err, map[string]any{
						"ruleset": d.ruleset,
					})
				}
				return files, nil
			},
		})
	}
}
