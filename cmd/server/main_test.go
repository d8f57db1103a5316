package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/find-related/internal/config"
	"github.com/freewebtopdf/find-related/internal/domain"
)

func testConfig(t *testing.T, files ...string) *config.Config {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	cfg := &config.Config{}
	cfg.Settings.WorkspaceRoot = root
	cfg.Settings.UserFile = filepath.Join(t.TempDir(), "settings.yaml")
	cfg.Settings.WatchDebounce = 20 * time.Millisecond
	cfg.Resolution.MaxConcurrent = 4
	cfg.Resolution.LookupTimeout = 5 * time.Second
	cfg.Resolution.RegexMatchTimeout = 100 * time.Millisecond
	cfg.Cache.PatternCacheSize = 64
	return cfg
}

func setup(t *testing.T, cfg *config.Config) *components {
	t.Helper()
	c, err := newComponents(cfg)
	require.NoError(t, err)
	require.NoError(t, c.reload(context.Background()))
	return c
}

func writeWorkspaceSettings(t *testing.T, cfg *config.Config, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Settings.WorkspaceRoot, ".findrelated.yaml"), []byte(content), 0o644))
}

func writeUserSettings(t *testing.T, cfg *config.Config, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(cfg.Settings.UserFile, []byte(content), 0o644))
}

func TestRunRelated_BuiltinsApplyByDefault(t *testing.T) {
	cfg := testConfig(t, "src/foo.ts", "src/foo.test.ts", "src/foo.spec.ts", "node_modules/x/src/foo.test.ts")
	c := setup(t, cfg)

	var stdout, stderr bytes.Buffer
	code := runRelated(context.Background(), c, "src/foo.ts", cfg.Settings.WorkspaceRoot, false, &stdout, &stderr)

	assert.Equal(t, exitFound, code)
	assert.Equal(t, "src/foo.spec.ts\nsrc/foo.test.ts\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRunRelated_SingleResult(t *testing.T) {
	cfg := testConfig(t, "pkg/main.go", "pkg/main_test.go")
	c := setup(t, cfg)

	var stdout, stderr bytes.Buffer
	code := runRelated(context.Background(), c, filepath.Join(cfg.Settings.WorkspaceRoot, "pkg", "main.go"), cfg.Settings.WorkspaceRoot, false, &stdout, &stderr)

	assert.Equal(t, exitFound, code)
	assert.Equal(t, "pkg/main_test.go\n", stdout.String())
}

func TestRunRelated_JSON(t *testing.T) {
	cfg := testConfig(t, "pkg/main.go")
	c := setup(t, cfg)

	var stdout, stderr bytes.Buffer
	code := runRelated(context.Background(), c, "pkg/main.go", cfg.Settings.WorkspaceRoot, true, &stdout, &stderr)
	assert.Equal(t, exitNone, code)

	var result domain.RelatedResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, domain.OutcomeNoRelatedFiles, result.Outcome)
	assert.Equal(t, "pkg/main.go", result.FileName)
	assert.Empty(t, result.Files)
}

func TestRunRelated_EmptyApplyListDisablesBuiltins(t *testing.T) {
	cfg := testConfig(t, "pkg/main.go", "pkg/main_test.go")
	writeUserSettings(t, cfg, "applyRulesets: []\n")
	c := setup(t, cfg)

	var stdout, stderr bytes.Buffer
	code := runRelated(context.Background(), c, "pkg/main.go", cfg.Settings.WorkspaceRoot, false, &stdout, &stderr)

	assert.Equal(t, exitNone, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "No matching rules for pkg/main.go")
}

func TestRunRelated_WorkspaceRulesetShadowsBuiltin(t *testing.T) {
	cfg := testConfig(t, "pkg/main.go", "pkg/main_test.go", "docs/main.md")
	writeWorkspaceSettings(t, cfg, `
applyRulesets: [go]
rulesets:
  - name: go
    rules:
      - pattern: '([^/]+)\.go$'
        locators: ['docs/$1.md']
`)
	c := setup(t, cfg)

	var stdout, stderr bytes.Buffer
	code := runRelated(context.Background(), c, "pkg/main.go", cfg.Settings.WorkspaceRoot, false, &stdout, &stderr)

	assert.Equal(t, exitFound, code)
	assert.Equal(t, "docs/main.md\n", stdout.String())
}

func TestRunRelated_InvalidFileName(t *testing.T) {
	c := setup(t, testConfig(t))

	var stdout, stderr bytes.Buffer
	code := runRelated(context.Background(), c, "a\x00b", "", false, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), domain.ErrValidationFailed)
}

func TestReload_KeepsLastGoodSettings(t *testing.T) {
	cfg := testConfig(t, "pkg/main.go", "pkg/main_test.go", "docs/main.md")
	writeWorkspaceSettings(t, cfg, `
rulesets:
  - name: go
    rules:
      - pattern: '([^/]+)\.go$'
        locators: ['docs/$1.md']
`)
	c := setup(t, cfg)

	writeWorkspaceSettings(t, cfg, "applyRulesets: [go\n  broken: : :\n")
	err := c.reload(context.Background())
	require.Error(t, err)

	var stdout, stderr bytes.Buffer
	code := runRelated(context.Background(), c, "pkg/main.go", cfg.Settings.WorkspaceRoot, false, &stdout, &stderr)
	assert.Equal(t, exitFound, code)
	assert.Equal(t, "docs/main.md\n", stdout.String())
	assert.NotEmpty(t, c.store.GetLoadErrors())
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	cfg := testConfig(t, "pkg/main.go", "pkg/main_test.go")
	c := setup(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.watch(ctx, cfg.Settings.WatchDebounce))

	writeUserSettings(t, cfg, "applyRulesets: []\n")

	assert.Eventually(t, func() bool {
		snap, ok := c.registry.Snapshot()
		return ok && len(snap.Rules) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStartupLogging(t *testing.T) {
	var logBuffer bytes.Buffer

	originalLogger := log.Logger
	defer func() {
		log.Logger = originalLogger
	}()

	log.Logger = zerolog.New(&logBuffer).With().Timestamp().Logger()

	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.BodyLimit = 1048576
	cfg.Settings.WorkspaceRoot = "/ws"
	cfg.Settings.Watch = true
	cfg.Resolution.LookupTimeout = 10 * time.Second
	cfg.Resolution.MaxConcurrent = 16
	cfg.Resolution.RegexMatchTimeout = 100 * time.Millisecond
	cfg.Cache.PatternCacheSize = 1024
	cfg.Security.CORSOrigins = []string{"https://example.com", "https://test.com"}
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	logStartupConfig(cfg)

	var logEntry map[string]interface{}
	err := json.Unmarshal([]byte(strings.TrimSpace(logBuffer.String())), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "Configuration loaded successfully", logEntry["message"])
	assert.Equal(t, float64(8080), logEntry["server_port"])
	assert.Equal(t, float64(5000), logEntry["server_read_timeout"])
	assert.Equal(t, float64(10000), logEntry["server_write_timeout"])
	assert.Equal(t, "/ws", logEntry["workspace_root"])
	assert.Equal(t, true, logEntry["watch_settings"])
	assert.Equal(t, float64(16), logEntry["max_concurrent_lookups"])
	assert.Equal(t, float64(100), logEntry["regex_match_timeout"])
	assert.Equal(t, float64(1024), logEntry["pattern_cache_size"])
	assert.Equal(t, "json", logEntry["logging_format"])

	corsOrigins, ok := logEntry["security_cors_origins"].([]interface{})
	require.True(t, ok)
	assert.Len(t, corsOrigins, 2)
	assert.NotNil(t, logEntry["time"])
}
