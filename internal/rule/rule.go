// Package rule compiles rule definitions into matchers and expands locator
// templates into file lookups.
package rule

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/domain"
)

// Kind values reported by Rule.Kind
const (
	KindStatic  = "static"
	KindDynamic = "dynamic"
)

// Rule is a compiled entry of the active rule list. Implementations are
// stateless: the captured groups of a match are returned to the caller and
// handed back to ProvideRelated, so one Rule may serve concurrent resolutions.
type Rule interface {
	Ruleset() string
	Kind() string
	Match(fileName string) (Match, bool)
	// ProvideRelated yields one pending Lookup per locator. The sequence is
	// lazy and nothing touches the file system until a Lookup is run.
	ProvideRelated(m Match, req Request) iter.Seq[Lookup]
}

// Match holds the captured groups of a successful match. Groups[0] is the
// whole match. The zero Match means the rule did not match.
type Match struct {
	Groups []string
}

// Matched reports whether m came from a successful match
func (m Match) Matched() bool {
	return len(m.Groups) > 0
}

// Request carries everything a lookup needs besides its glob
type Request struct {
	FileName   string
	Document   domain.Document
	RootPath   string
	Excludes   domain.Excludes
	MaxResults int
}

// Lookup is a pending file search. It is not started until Run is called.
type Lookup struct {
	Ruleset string
	Pattern string
	run     func(ctx context.Context) ([]string, error)
}

// Run performs the lookup
func (l Lookup) Run(ctx context.Context) ([]string, error) {
	if l.run == nil {
		return nil, nil
	}
	return l.run(ctx)
}

// PatternCache shares compiled regexes across recompiles
type PatternCache interface {
	Get(pattern string) (*regexp2.Regexp, bool)
	Set(pattern string, re *regexp2.Regexp)
}

// Options tunes compilation
type Options struct {
	MatchTimeout time.Duration
	Cache        PatternCache
}

// Compiled is a static rule built from a RuleDefinition
type Compiled struct {
	ruleset  string
	pattern  string
	locators []string
	re       *regexp2.Regexp
	finder   domain.FileFinder
}

// Compile builds a case-insensitive matcher for def. An invalid pattern yields
// a RULE_PATTERN_INVALID error and no rule.
func Compile(def domain.RuleDefinition, rulesetName string, finder domain.FileFinder, opts Options) (*Compiled, error) {
	re, err := compilePattern(def.Pattern, opts)
	if err != nil {
		return nil, domain.NewAppErrorWithCause(
			domain.ErrRulePatternInvalid,
			"Rule pattern is not a valid regular expression",
			422,
			err,
			map[string]any{"ruleset": rulesetName, "pattern": def.Pattern},
		)
	}

	return &Compiled{
		ruleset:  rulesetName,
		pattern:  def.Pattern,
		locators: append([]string(nil), def.Locators...),
		re:       re,
		finder:   finder,
	}, nil
}

func compilePattern(pattern string, opts Options) (*regexp2.Regexp, error) {
	if opts.Cache != nil {
		if re, ok := opts.Cache.Get(pattern); ok {
			return re, nil
		}
	}

	re, err := regexp2.Compile(pattern, regexp2.ECMAScript|regexp2.IgnoreCase)
	if err != nil {
		return nil, err
	}
	if opts.MatchTimeout > 0 {
		re.MatchTimeout = opts.MatchTimeout
	}

	if opts.Cache != nil {
		opts.Cache.Set(pattern, re)
	}
	return re, nil
}

// Ruleset returns the name of the ruleset the rule was compiled under
func (r *Compiled) Ruleset() string { return r.ruleset }

// Kind returns KindStatic
func (r *Compiled) Kind() string { return KindStatic }

// Match runs the pattern against fileName. A timeout counts as no match.
func (r *Compiled) Match(fileName string) (Match, bool) {
	if r == nil || r.re == nil {
		return Match{}, false
	}

	m, err := r.re.FindStringMatch(fileName)
	if err != nil {
		log.Warn().
			Err(err).
			Str("ruleset", r.ruleset).
			Str("pattern", r.pattern).
			Str("file", fileName).
			Msg("Rule match failed")
		return Match{}, false
	}
	if m == nil {
		log.Debug().Str("ruleset", r.ruleset).Str("pattern", r.pattern).Str("file", fileName).Bool("matched", false).Msg("Rule match")
		return Match{}, false
	}

	groups := m.Groups()
	captured := make([]string, len(groups))
	for i, g := range groups {
		if len(g.Captures) > 0 {
			captured[i] = g.String()
		} else {
			captured[i] = Undefined
		}
	}

	log.Debug().Str("ruleset", r.ruleset).Str("pattern", r.pattern).Str("file", fileName).Bool("matched", true).Msg("Rule match")
	return Match{Groups: captured}, true
}

// ProvideRelated yields one lookup per locator, in locator order. The glob of
// each locator is expanded when the sequence reaches it.
func (r *Compiled) ProvideRelated(m Match, req Request) iter.Seq[Lookup] {
	return func(yield func(Lookup) bool) {
		if r == nil || !m.Matched() {
			return
		}
		for _, locator := range r.locators {
			glob := ExpandTokens(locator, m.Groups)
			log.Debug().
				Str("ruleset", r.ruleset).
				Str("file", req.FileName).
				Str("root", req.RootPath).
				Str("glob", glob).
				Msg("Rule lookup")

			lookup := Lookup{
				Ruleset: r.ruleset,
				Pattern: glob,
				run: func(ctx context.Context) ([]string, error) {
					if r.finder == nil {
						return nil, domain.NewAppError(domain.ErrLookupFailed, "No file finder configured", 500, map[string]any{"glob": glob})
					}
					files, err := r.finder.FindFiles(ctx, glob, req.RootPath, req.Excludes, req.MaxResults)
					if err != nil {
						return nil, domain.NewAppErrorWithCause(domain.ErrLookupFailed, "File lookup failed", 500, err, map[string]any{
							"ruleset": r.ruleset,
							"glob":    glob,
						})
					}
					return files, nil
				},
			}
			if !yield(lookup) {
				return
			}
		}
	}
}

// Undefined is substituted for a $N token whose group did not participate in
// the match or does not exist.
const Undefined = "undefined"

// ExpandTokens replaces every $N (N a single digit) in template with the N-th
// captured group, or with Undefined when there is no such group.
func ExpandTokens(template string, groups []string) string {
	if !strings.Contains(template, "$") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '$' && i+1 < len(template) && template[i+1] >= '0' && template[i+1] <= '9' {
			n := int(template[i+1] - '0')
			if n < len(groups) {
				b.WriteString(groups[n])
			} else {
				b.WriteString(Undefined)
			}
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// String describes the rule for logs
func (r *Compiled) String() string {
	return fmt.Sprintf("%s:%s", r.ruleset, r.pattern)
}
