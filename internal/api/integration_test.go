package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/find-related/internal/cache"
	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/finder"
	"github.com/freewebtopdf/find-related/internal/health"
	"github.com/freewebtopdf/find-related/internal/loader"
	"github.com/freewebtopdf/find-related/internal/registry"
	"github.com/freewebtopdf/find-related/internal/resolver"
	"github.com/freewebtopdf/find-related/internal/rule"
	"github.com/freewebtopdf/find-related/internal/storage"
)

func mockRouter(t *testing.T, m *testMocks, config RouterConfig) *RouterResult {
	t.Helper()
	if config.BodyLimit == 0 {
		config.BodyLimit = 1048576
	}
	result := SetupRouter(RouterDependencies{
		Finder:        m.finder,
		Registry:      m.registry,
		Settings:      m.settings,
		Cache:         m.cache,
		Validator:     m.valid,
		HealthChecker: m.health,
	}, config)
	t.Cleanup(result.Cleanup)
	return result
}

func TestRouterMiddleware(t *testing.T) {
	t.Run("request id and security headers", func(t *testing.T) {
		m := newTestMocks()
		m.registry.On("Rulesets", mock.Anything).Return([]domain.RulesetInfo{})
		app := mockRouter(t, m, RouterConfig{}).App

		seen := make(map[string]bool)
		for range 5 {
			resp, err := app.Test(httptest.NewRequest("GET", "/v1/rulesets", nil), 5000)
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)

			rid := resp.Header.Get("X-Request-ID")
			assert.Len(t, rid, 36)
			assert.False(t, seen[rid], "request ids must be unique")
			seen[rid] = true

			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
		}
	})

	t.Run("request id reaches the resolution context", func(t *testing.T) {
		m := newTestMocks()
		var captured string
		m.valid.On("ValidateFileName", "a.go").Return(nil)
		m.finder.On("FindRelated", mock.Anything, "a.go", "", mock.Anything).Run(func(args mock.Arguments) {
			captured, _ = args.Get(0).(context.Context).Value(domain.RequestIDKey).(string)
		}).Return(&domain.RelatedResult{Outcome: domain.OutcomeNoRelatedFiles, Files: []string{}}, nil)
		app := mockRouter(t, m, RouterConfig{}).App

		req := httptest.NewRequest("POST", "/v1/related", strings.NewReader(`{"fileName":"a.go"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, 5000)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, resp.Header.Get("X-Request-ID"), captured)
	})

	t.Run("unknown route", func(t *testing.T) {
		app := mockRouter(t, newTestMocks(), RouterConfig{}).App

		status, body := doJSON(t, app, "GET", "/v1/missing", nil)
		assert.Equal(t, 404, status)
		assert.Equal(t, domain.ErrNotFound, body["code"])
	})

	t.Run("panic is recovered", func(t *testing.T) {
		m := newTestMocks()
		m.valid.On("ValidateFileName", "a.go").Return(nil)
		m.finder.On("FindRelated", mock.Anything, "a.go", "", mock.Anything).Run(func(args mock.Arguments) {
			panic("finder exploded")
		}).Return(nil, nil)
		app := mockRouter(t, m, RouterConfig{}).App

		status, body := doJSON(t, app, "POST", "/v1/related", RelatedRequest{FileName: "a.go"})
		assert.Equal(t, 500, status)
		assert.Equal(t, domain.ErrInternal, body["code"])
		assert.NotContains(t, body["message"], "finder exploded")
	})

	t.Run("body limit", func(t *testing.T) {
		app := mockRouter(t, newTestMocks(), RouterConfig{BodyLimit: 64}).App

		payload := `{"fileName":"` + strings.Repeat("a", 256) + `"}`
		req := httptest.NewRequest("POST", "/v1/related", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, 5000)
		if err != nil {
			assert.Contains(t, err.Error(), "body size exceeds")
			return
		}
		assert.Equal(t, 413, resp.StatusCode)
	})

	t.Run("cors origin allowed", func(t *testing.T) {
		m := newTestMocks()
		m.registry.On("Rulesets", mock.Anything).Return([]domain.RulesetInfo{})
		app := mockRouter(t, m, RouterConfig{CORSOrigins: []string{"https://editor.example.com"}}).App

		req := httptest.NewRequest("GET", "/v1/rulesets", nil)
		req.Header.Set("Origin", "https://editor.example.com")
		resp, err := app.Test(req, 5000)
		require.NoError(t, err)
		assert.Equal(t, "https://editor.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("rate limit headers", func(t *testing.T) {
		m := newTestMocks()
		m.registry.On("Rulesets", mock.Anything).Return([]domain.RulesetInfo{})
		app := mockRouter(t, m, RouterConfig{RateLimitRPS: 10, RateLimitBurst: 20}).App

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/rulesets", nil), 5000)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))

		m.cache.On("Stats").Return(domain.CacheStats{})
		m.registry.On("GetStats", mock.Anything).Return(map[string]any{})
		m.finder.On("GetStats", mock.Anything).Return(map[string]any{})
		status, body := doJSON(t, app, "GET", "/metrics", nil)
		assert.Equal(t, 200, status)
		assert.Contains(t, body["data"], "rate_limit")
	})
}

// workspace builds the real component graph over a temporary directory tree
type workspace struct {
	root   string
	store  *storage.Store
	router *RouterResult
}

func newWorkspace(t *testing.T, files ...string) *workspace {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		writeFile(t, filepath.Join(root, filepath.FromSlash(f)), "")
	}

	builtins, err := loader.BuiltinRulesets()
	require.NoError(t, err)

	store := storage.NewStore(storage.StoreConfig{
		UserFile:      filepath.Join(t.TempDir(), "settings.yaml"),
		WorkspaceRoot: root,
	}, builtins)
	require.NoError(t, store.Load(context.Background()))

	patterns := cache.NewPatternCache(64)
	reg := registry.NewRegistry(store, finder.NewGlobFinder(root), rule.Options{
		MatchTimeout: 100 * time.Millisecond,
		Cache:        patterns,
	})
	require.NoError(t, reg.Recompile(context.Background()))

	service := resolver.NewService(reg, resolver.NewDriver(resolver.DriverConfig{
		MaxConcurrent: 4,
		LookupTimeout: 5 * time.Second,
	}), resolver.ServiceConfig{DefaultRoot: root})

	router := SetupRouter(RouterDependencies{
		Finder:        service,
		Registry:      reg,
		Settings:      store,
		Cache:         patterns,
		Validator:     domain.NewValidator(),
		HealthChecker: health.NewSystemHealthChecker(store, reg, patterns, service),
	}, RouterConfig{BodyLimit: 1048576, RequestTimeout: 10 * time.Second})
	t.Cleanup(router.Cleanup)

	return &workspace{root: root, store: store, router: router}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (w *workspace) related(t *testing.T, fileName string) (string, []string) {
	t.Helper()
	status, body := doJSON(t, w.router.App, "POST", "/v1/related", RelatedRequest{FileName: fileName})
	require.Equal(t, 200, status, "body: %v", body)

	data := body["data"].(map[string]any)
	var files []string
	for _, f := range data["files"].([]any) {
		files = append(files, f.(string))
	}
	return data["outcome"].(string), files
}

func TestAPIEndToEnd(t *testing.T) {
	w := newWorkspace(t, "src/foo.ts", "src/foo.test.ts", "src/foo.md")

	t.Run("builtin rules resolve", func(t *testing.T) {
		outcome, files := w.related(t, "src/foo.ts")
		assert.Equal(t, "found", outcome)
		assert.Equal(t, []string{"src/foo.test.ts"}, files)
	})

	t.Run("absolute file name is made relative", func(t *testing.T) {
		_, files := w.related(t, filepath.Join(w.root, "src", "foo.test.ts"))
		assert.Equal(t, []string{"src/foo.ts"}, files)
	})

	t.Run("no matching rules", func(t *testing.T) {
		outcome, files := w.related(t, "Makefile")
		assert.Equal(t, "no_matching_rules", outcome)
		assert.Empty(t, files)
	})

	var id string
	t.Run("registered ruleset is appended", func(t *testing.T) {
		status, body := doJSON(t, w.router.App, "POST", "/v1/rulesets", domain.Ruleset{
			Name:  "docs",
			Rules: []domain.RuleDefinition{{Pattern: `(.*)\.ts$`, Locators: []string{"$1.md"}}},
		})
		require.Equal(t, 201, status)
		id = body["data"].(map[string]any)["id"].(string)

		_, files := w.related(t, "src/foo.ts")
		assert.Equal(t, []string{"src/foo.test.ts", "src/foo.md"}, files)

		status, body = doJSON(t, w.router.App, "GET", "/v1/rulesets", nil)
		require.Equal(t, 200, status)
		rulesets := body["data"].(map[string]any)["rulesets"].([]any)
		last := rulesets[len(rulesets)-1].(map[string]any)
		assert.Equal(t, "docs", last["name"])
		assert.Equal(t, "registered", last["source"])
		assert.Equal(t, id, last["id"])
	})

	t.Run("invalid registration is rejected", func(t *testing.T) {
		status, body := doJSON(t, w.router.App, "POST", "/v1/rulesets", domain.Ruleset{
			Name:  "bad",
			Rules: []domain.RuleDefinition{{Pattern: "(unclosed", Locators: []string{"x"}}},
		})
		assert.Equal(t, 422, status)
		assert.Equal(t, domain.ErrRulePatternInvalid, body["code"])
	})

	t.Run("dispose removes registration", func(t *testing.T) {
		require.NotEmpty(t, id)
		status, _ := doJSON(t, w.router.App, "DELETE", "/v1/rulesets/"+id, nil)
		assert.Equal(t, 200, status)

		_, files := w.related(t, "src/foo.ts")
		assert.Equal(t, []string{"src/foo.test.ts"}, files)

		status, body := doJSON(t, w.router.App, "DELETE", "/v1/rulesets/"+id, nil)
		assert.Equal(t, 404, status)
		assert.Equal(t, domain.ErrNotFound, body["code"])
	})

	t.Run("reload picks up workspace rulesets", func(t *testing.T) {
		writeFile(t, filepath.Join(w.root, ".findrelated.yaml"), `
rulesets:
  - name: typescript
    rules:
      - pattern: '(.*)\.ts$'
        locators: ['$1.md']
`)
		status, body := doJSON(t, w.router.App, "POST", "/v1/reload", nil)
		require.Equal(t, 200, status, "body: %v", body)

		_, files := w.related(t, "src/foo.ts")
		assert.Equal(t, []string{"src/foo.md"}, files)
	})

	t.Run("broken settings keep previous rules", func(t *testing.T) {
		writeFile(t, filepath.Join(w.root, ".findrelated.yaml"), "rulesets: [\n  broken: : :\n")
		status, body := doJSON(t, w.router.App, "POST", "/v1/reload", nil)
		assert.Equal(t, 422, status)
		assert.Equal(t, domain.ErrSettingsInvalid, body["code"])

		_, files := w.related(t, "src/foo.ts")
		assert.Equal(t, []string{"src/foo.md"}, files)
	})

	t.Run("health and metrics", func(t *testing.T) {
		status, body := doJSON(t, w.router.App, "GET", "/health", nil)
		assert.Contains(t, []int{200, 503}, status)
		assert.Contains(t, body["components"], "registry")

		status, body = doJSON(t, w.router.App, "GET", "/metrics", nil)
		assert.Equal(t, 200, status)
		data := body["data"].(map[string]any)
		assert.Greater(t, data["resolution"].(map[string]any)["requests"], float64(0))
	})
}

func TestAPIEndToEnd_ConcurrentRequests(t *testing.T) {
	w := newWorkspace(t, "pkg/a.go", "pkg/a_test.go", "pkg/b.go", "pkg/b_test.go")

	var wg sync.WaitGroup
	errs := make(chan string, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, want := "pkg/a.go", "pkg/a_test.go"
			if i%2 == 1 {
				name, want = "pkg/b_test.go", "pkg/b.go"
			}

			raw, _ := json.Marshal(RelatedRequest{FileName: name})
			req := httptest.NewRequest("POST", "/v1/related", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			resp, err := w.router.App.Test(req, 5000)
			if err != nil {
				errs <- err.Error()
				return
			}
			var response struct {
				Data domain.RelatedResult `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
				errs <- err.Error()
				return
			}
			if len(response.Data.Files) != 1 || response.Data.Files[0] != want {
				errs <- name + ": unexpected files " + strings.Join(response.Data.Files, ",")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}
