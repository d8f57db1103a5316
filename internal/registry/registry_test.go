package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/find-related/internal/cache"
	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/rule"
)

type staticSource struct {
	mu       sync.Mutex
	settings domain.Settings
	loaded   bool
	builtins []domain.Ruleset
}

func (s *staticSource) Settings(ctx context.Context) (domain.Settings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, s.loaded
}

func (s *staticSource) Builtins(ctx context.Context) []domain.Ruleset { return s.builtins }

func (s *staticSource) HealthCheck(ctx context.Context) domain.HealthStatus {
	return domain.HealthStatus{Status: domain.HealthStatusHealthy}
}

func (s *staticSource) GetStats(ctx context.Context) map[string]any { return nil }

func (s *staticSource) set(settings domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.loaded = true
}

// globFinder returns the glob it was asked for, so tests can observe which
// locator template produced a lookup
type globFinder struct{}

func (globFinder) FindFiles(ctx context.Context, pattern, rootPath string, excludes domain.Excludes, maxResults int) ([]string, error) {
	return []string{pattern}, nil
}

func ts(pattern, locator string) domain.Ruleset {
	return domain.Ruleset{Name: "ts", Rules: []domain.RuleDefinition{{Pattern: pattern, Locators: []string{locator}}}}
}

func newRegistry(t *testing.T, settings *domain.Settings, builtins ...domain.Ruleset) (*Registry, *staticSource) {
	t.Helper()
	src := &staticSource{builtins: builtins}
	if settings != nil {
		src.set(*settings)
	}
	reg := NewRegistry(src, globFinder{}, rule.Options{Cache: cache.NewPatternCache(16)})
	return reg, src
}

func globs(t *testing.T, reg *Registry, fileName string) []string {
	t.Helper()
	snap, ok := reg.Snapshot()
	require.True(t, ok)

	var out []string
	for lookup := range ResolveRules(snap.ProvideRules(fileName), rule.Request{FileName: fileName}) {
		files, err := lookup.Run(context.Background())
		require.NoError(t, err)
		out = append(out, files...)
	}
	return out
}

func TestRecompile_WithoutSettings(t *testing.T) {
	reg, _ := newRegistry(t, nil)

	err := reg.Recompile(context.Background())
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, domain.ErrSettingsUnavailable, appErr.Code)
	assert.Equal(t, 503, appErr.StatusCode)

	_, ok := reg.Snapshot()
	assert.False(t, ok)
	assert.Nil(t, reg.ProvideRules("src/foo.ts"))
	assert.Equal(t, domain.HealthStatusUnhealthy, reg.HealthCheck(context.Background()).Status)
}

func TestRecompile_CancelledContext(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, domain.IsTimeout(reg.Recompile(ctx)))
}

func TestRecompile_WorkspaceShadowsUserAndBuiltin(t *testing.T) {
	settings := &domain.Settings{
		ApplyRulesets:     []string{"ts"},
		Rulesets:          []domain.Ruleset{ts(`(.+)\.ts$`, "$1.user.ts")},
		WorkspaceRulesets: []domain.Ruleset{ts(`(.+)\.ts$`, "$1.workspace.ts")},
	}
	reg, src := newRegistry(t, settings, ts(`(.+)\.ts$`, "$1.builtin.ts"))
	require.NoError(t, reg.Recompile(context.Background()))
	assert.Equal(t, []string{"src/foo.workspace.ts"}, globs(t, reg, "src/foo.ts"))

	snap, ok := reg.Snapshot()
	require.True(t, ok)
	require.Contains(t, snap.Conflicts, "ts")
	assert.Equal(t, []domain.SourceType{domain.SourceWorkspace, domain.SourceUser, domain.SourceBuiltin}, snap.Conflicts["ts"].Sources)
	assert.Equal(t, domain.SourceWorkspace, snap.Conflicts["ts"].ActiveSource)
	assert.Equal(t, 1, reg.GetStats(context.Background())["ruleset_conflicts"])

	settings.WorkspaceRulesets = nil
	src.set(*settings)
	require.NoError(t, reg.Recompile(context.Background()))
	assert.Equal(t, []string{"src/foo.user.ts"}, globs(t, reg, "src/foo.ts"))

	settings.Rulesets = nil
	src.set(*settings)
	require.NoError(t, reg.Recompile(context.Background()))
	assert.Equal(t, []string{"src/foo.builtin.ts"}, globs(t, reg, "src/foo.ts"))
	assert.Equal(t, 0, reg.GetStats(context.Background())["ruleset_conflicts"])
}

func TestRecompile_AppliedOrderAndUnknownNames(t *testing.T) {
	builtins := []domain.Ruleset{
		{Name: "a", Rules: []domain.RuleDefinition{{Pattern: `(.+)\.ts$`, Locators: []string{"$1.a"}}}},
		{Name: "b", Rules: []domain.RuleDefinition{{Pattern: `(.+)\.ts$`, Locators: []string{"$1.b"}}}},
	}
	reg, _ := newRegistry(t, &domain.Settings{
		ApplyRulesets:          []string{"b", "missing"},
		ApplyWorkspaceRulesets: []string{"a", "b"},
	}, builtins...)

	require.NoError(t, reg.Recompile(context.Background()))
	assert.Equal(t, []string{"foo.b", "foo.a"}, globs(t, reg, "foo.ts"))
}

func TestRecompile_InvalidPatternIsIsolated(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{
		ApplyRulesets: []string{"ts"},
		Rulesets: []domain.Ruleset{{Name: "ts", Rules: []domain.RuleDefinition{
			{Pattern: `(unclosed`, Locators: []string{"x"}},
			{Pattern: `(.+)\.ts$`, Locators: []string{"$1.test.ts"}},
		}}},
	})

	require.NoError(t, reg.Recompile(context.Background()))
	snap, ok := reg.Snapshot()
	require.True(t, ok)
	assert.Len(t, snap.Rules, 1)
	assert.Equal(t, 1, snap.Failures)
	assert.Equal(t, []string{"foo.test.ts"}, globs(t, reg, "foo.ts"))

	health := reg.HealthCheck(context.Background())
	assert.Equal(t, domain.HealthStatusDegraded, health.Status)
	assert.Equal(t, 1, health.Details["invalid_rules"])
}

func TestRecompile_EmptyListIsPublished(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{})
	require.NoError(t, reg.Recompile(context.Background()))

	snap, ok := reg.Snapshot()
	require.True(t, ok)
	assert.Empty(t, snap.Rules)
	assert.Empty(t, reg.ProvideRules("foo.ts"))
	assert.Equal(t, domain.HealthStatusDegraded, reg.HealthCheck(context.Background()).Status)
}

func TestRecompile_ExcludesFollowSettings(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{Excludes: []string{"**/dist/**"}})
	require.NoError(t, reg.Recompile(context.Background()))

	snap, _ := reg.Snapshot()
	assert.Equal(t, domain.ExcludePatterns, snap.Excludes.Mode)
	assert.Equal(t, []string{"**/dist/**"}, snap.Excludes.Patterns)
}

func TestRegisterRuleset_AppendsAfterConfigured(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{ApplyRulesets: []string{"ts"}}, ts(`(.+)\.ts$`, "$1.builtin"))

	handle := reg.RegisterRuleset("ts", domain.StaticEntry(domain.RuleDefinition{Pattern: `(.+)\.ts$`, Locators: []string{"$1.registered"}}))
	require.NotNil(t, handle)
	assert.NotEmpty(t, handle.ID())
	assert.Equal(t, "ts", handle.Name())

	assert.Equal(t, []string{"foo.builtin", "foo.registered"}, globs(t, reg, "foo.ts"))
}

func TestRegisterRuleset_DynamicEntry(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{})

	reg.RegisterRuleset("dyn",
		domain.DynamicEntry(domain.DynamicRuleFuncs{
			MatchFunc: func(fileName string) bool { return fileName == "main.go" },
			ProvideFunc: func(ctx context.Context, fileName string, doc domain.Document, rootPath string) ([]string, error) {
				return []string{"main_test.go"}, nil
			},
		}),
		domain.DynamicEntry(nil),
	)

	assert.Equal(t, []string{"main_test.go"}, globs(t, reg, "main.go"))
	assert.Empty(t, globs(t, reg, "other.go"))

	snap, _ := reg.Snapshot()
	assert.Equal(t, 1, snap.Failures)
}

func TestRegistration_DisposeRemovesOnlyItself(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{})
	def := domain.RuleDefinition{Pattern: `(.+)\.ts$`, Locators: []string{"$1.same"}}

	first := reg.RegisterRuleset("same", domain.StaticEntry(def))
	second := reg.RegisterRuleset("same", domain.StaticEntry(def))
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, []string{"foo.same", "foo.same"}, globs(t, reg, "foo.ts"))

	first.Dispose()
	assert.Equal(t, []string{"foo.same"}, globs(t, reg, "foo.ts"))

	first.Dispose()
	assert.Equal(t, []string{"foo.same"}, globs(t, reg, "foo.ts"), "second dispose is a no-op")

	_, ok := reg.Lookup(first.ID())
	assert.False(t, ok)
	_, ok = reg.Lookup(second.ID())
	assert.True(t, ok)
}

func TestUnregister(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{})
	handle := reg.RegisterRuleset("x", domain.StaticEntry(domain.RuleDefinition{Pattern: "x", Locators: []string{"y"}}))

	require.NoError(t, reg.Unregister(handle.ID()))
	assert.True(t, domain.IsNotFound(reg.Unregister(handle.ID())))

	snap, _ := reg.Snapshot()
	assert.Empty(t, snap.Rules)
}

func TestRegisterDefinitions(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{})
	id := reg.RegisterDefinitions("x", []domain.RuleDefinition{{Pattern: `(.+)\.ts$`, Locators: []string{"$1.x", "$1.y"}}})

	handle, ok := reg.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "x", handle.Name())
	assert.Equal(t, []string{"foo.x", "foo.y"}, globs(t, reg, "foo.ts"))
}

func TestRegisterRuleset_BeforeSettingsLoad(t *testing.T) {
	reg, src := newRegistry(t, nil)
	reg.RegisterRuleset("x", domain.StaticEntry(domain.RuleDefinition{Pattern: `(.+)\.ts$`, Locators: []string{"$1.x"}}))

	_, ok := reg.Snapshot()
	assert.False(t, ok)

	src.set(domain.Settings{})
	require.NoError(t, reg.Recompile(context.Background()))
	assert.Equal(t, []string{"foo.x"}, globs(t, reg, "foo.ts"))
}

func TestSnapshot_IsImmutableAcrossRecompiles(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{ApplyRulesets: []string{"ts"}}, ts(`(.+)\.ts$`, "$1.a"))
	require.NoError(t, reg.Recompile(context.Background()))
	before, _ := reg.Snapshot()

	reg.RegisterRuleset("more", domain.StaticEntry(domain.RuleDefinition{Pattern: `(.+)\.ts$`, Locators: []string{"$1.b"}}))
	after, _ := reg.Snapshot()

	assert.Len(t, before.Rules, 1)
	assert.Len(t, after.Rules, 2)
	assert.Greater(t, after.Generation, before.Generation)
}

func TestResolveRules_StopsEarly(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{})
	reg.RegisterRuleset("x", domain.StaticEntry(domain.RuleDefinition{Pattern: `(.+)`, Locators: []string{"a", "b", "c"}}))

	count := 0
	for range reg.ResolveRules(reg.ProvideRules("foo"), rule.Request{}) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestRulesets_ReportsScopesAndRegistrations(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{
		ApplyRulesets:     []string{"ts"},
		WorkspaceRulesets: []domain.Ruleset{ts("x", "y")},
	}, ts("x", "y"), domain.Ruleset{Name: "go", Rules: []domain.RuleDefinition{{Pattern: "x", Locators: []string{"y"}}}})
	handle := reg.RegisterRuleset("dyn", domain.DynamicEntry(domain.DynamicRuleFuncs{}))

	infos := reg.Rulesets(context.Background())
	byKey := make(map[string]domain.RulesetInfo)
	for _, info := range infos {
		byKey[info.Name+"/"+string(info.Source)] = info
	}

	assert.True(t, byKey["ts/workspace"].Applied)
	assert.True(t, byKey["ts/builtin"].Shadowed)
	assert.Equal(t, domain.SourceWorkspace, byKey["ts/builtin"].ShadowedBy)
	assert.False(t, byKey["go/builtin"].Applied)
	assert.Equal(t, handle.ID(), byKey["dyn/registered"].ID)
}

func TestGetStats(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{})
	assert.Equal(t, 0, reg.GetStats(context.Background())["rule_count"])

	reg.RegisterRuleset("x",
		domain.StaticEntry(domain.RuleDefinition{Pattern: "x", Locators: []string{"y"}}),
		domain.DynamicEntry(domain.DynamicRuleFuncs{}),
	)
	stats := reg.GetStats(context.Background())
	assert.Equal(t, 2, stats["rule_count"])
	assert.Equal(t, map[string]int{rule.KindStatic: 1, rule.KindDynamic: 1}, stats["rule_kinds"])
	assert.Equal(t, 1, stats["registered_rulesets"])
}

func TestConcurrentRegistrationAndMatching(t *testing.T) {
	reg, _ := newRegistry(t, &domain.Settings{})
	def := domain.RuleDefinition{Pattern: `(.+)\.ts$`, Locators: []string{"$1.x"}}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.RegisterRuleset("x", domain.StaticEntry(def)).Dispose()
		}()
		go func() {
			defer wg.Done()
			for _, m := range reg.ProvideRules("foo.ts") {
				assert.Equal(t, "foo", m.Match.Groups[1])
			}
		}()
	}
	wg.Wait()

	snap, ok := reg.Snapshot()
	require.True(t, ok)
	assert.Empty(t, snap.Rules)
}

func TestProperty_RegisteredRulesFollowConfigured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("registered rules always come after configured rules in the active list", prop.ForAll(
		func(registrations int) bool {
			reg := NewRegistry(&staticSource{
				settings: domain.Settings{ApplyRulesets: []string{"ts"}},
				loaded:   true,
				builtins: []domain.Ruleset{ts(`(.+)\.ts$`, "$1.builtin")},
			}, globFinder{}, rule.Options{})

			for i := 0; i < registrations; i++ {
				reg.RegisterRuleset("reg", domain.StaticEntry(domain.RuleDefinition{Pattern: `(.+)\.ts$`, Locators: []string{"$1.reg"}}))
			}

			snap, ok := reg.Snapshot()
			if !ok || len(snap.Rules) != registrations+1 {
				return false
			}
			if snap.Rules[0].Ruleset() != "ts" {
				return false
			}
			for _, r := range snap.Rules[1:] {
				if r.Ruleset() != "reg" {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
