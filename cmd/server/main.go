package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/api"
	"github.com/freewebtopdf/find-related/internal/config"
	"github.com/freewebtopdf/find-related/internal/domain"

	docs "github.com/freewebtopdf/find-related/docs"
)

// @title find-related API
// @version 1.0
// @description Rule engine that maps a file to its related files (tests, styles, templates) using regex rules and glob locators
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
// @schemes http https

// @tag.name Resolution
// @tag.description Related-file resolution

// @tag.name Rulesets
// @tag.description Ruleset listing, registration and settings reload

// @tag.name System
// @tag.description System health and metrics operations

// Exit codes of the one-shot -related mode
const (
	exitFound   = 0
	exitNone    = 1
	exitFailure = 2
)

func main() {
	healthCheck := flag.Bool("health-check", false, "Perform health check and exit")
	related := flag.String("related", "", "Print the files related to this file and exit")
	root := flag.String("root", "", "Workspace root for -related (defaults to WORKSPACE_ROOT or the working directory)")
	asJSON := flag.Bool("json", false, "Print the -related result as JSON")
	flag.Parse()

	if *healthCheck {
		performHealthCheck()
		return
	}

	setupLogger()

	if *root != "" {
		abs, err := filepath.Abs(*root)
		if err != nil {
			log.Fatal().Err(err).Str("root", *root).Msg("Invalid workspace root")
		}
		os.Setenv("WORKSPACE_ROOT", abs)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	c, err := newComponents(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build components")
	}

	ctx := context.Background()
	if err := c.reload(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial settings load incomplete")
	}

	if *related != "" {
		os.Exit(runRelated(ctx, c, *related, cfg.Settings.WorkspaceRoot, *asJSON, os.Stdout, os.Stderr))
	}

	log.Info().Msg("find-related service starting...")
	logStartupConfig(cfg)

	docs.SwaggerInfo.Host = os.Getenv("DOMAIN")

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if cfg.Settings.Watch {
		if err := c.watch(watchCtx, cfg.Settings.WatchDebounce); err != nil {
			log.Warn().Err(err).Msg("Settings watcher not started")
		} else {
			log.Info().Dur("debounce", cfg.Settings.WatchDebounce).Msg("Watching settings files")
		}
	}

	routerResult := api.SetupRouter(api.RouterDependencies{
		Finder:        c.service,
		Registry:      c.registry,
		Settings:      c.store,
		Cache:         c.cache,
		Validator:     c.validator,
		HealthChecker: c.health,
	}, api.RouterConfig{
		CORSOrigins:    cfg.Security.CORSOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RateLimitRPS:   cfg.Security.RateLimitRPS,
		RateLimitBurst: cfg.Security.RateLimitBurst,
		RequestTimeout: cfg.Server.WriteTimeout,
	})
	app := routerResult.App

	app.Server().ReadTimeout = cfg.Server.ReadTimeout
	app.Server().WriteTimeout = cfg.Server.WriteTimeout

	setupGracefulShutdown(app, func() {
		stopWatch()
		routerResult.Cleanup()
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().
		Int("port", cfg.Server.Port).
		Str("addr", serverAddr).
		Msg("Starting HTTP server")

	if err := app.Listen(serverAddr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339

	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if os.Getenv("LOG_FORMAT") == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func logStartupConfig(cfg *config.Config) {
	log.Info().
		Int("server_port", cfg.Server.Port).
		Dur("server_read_timeout", cfg.Server.ReadTimeout).
		Dur("server_write_timeout", cfg.Server.WriteTimeout).
		Int("server_body_limit", cfg.Server.BodyLimit).
		Str("workspace_root", cfg.Settings.WorkspaceRoot).
		Str("user_settings_file", cfg.Settings.UserFile).
		Bool("watch_settings", cfg.Settings.Watch).
		Dur("lookup_timeout", cfg.Resolution.LookupTimeout).
		Int("max_concurrent_lookups", cfg.Resolution.MaxConcurrent).
		Int("max_results", cfg.Resolution.MaxResults).
		Dur("regex_match_timeout", cfg.Resolution.RegexMatchTimeout).
		Int("pattern_cache_size", cfg.Cache.PatternCacheSize).
		Strs("security_cors_origins", cfg.Security.CORSOrigins).
		Str("logging_level", cfg.Logging.Level).
		Str("logging_format", cfg.Logging.Format).
		Msg("Configuration loaded successfully")
}

// runRelated resolves one file and prints the result. A single related file
// is printed alone so editors can open it directly.
func runRelated(ctx context.Context, c *components, fileName, root string, asJSON bool, stdout, stderr io.Writer) int {
	if err := c.validator.ValidateFileName(fileName); err != nil {
		fmt.Fprintf(stderr, "find-related: %v\n", err)
		return exitFailure
	}

	result, err := c.service.FindRelated(ctx, fileName, root, domain.Document{})
	if err != nil {
		fmt.Fprintf(stderr, "find-related: %v\n", err)
		return exitFailure
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(stderr, "find-related: %v\n", err)
			return exitFailure
		}
	} else {
		switch result.Outcome {
		case domain.OutcomeNoMatchingRules:
			fmt.Fprintf(stderr, "No matching rules for %s\n", result.FileName)
		case domain.OutcomeNoRelatedFiles:
			fmt.Fprintf(stderr, "No related files found for %s\n", result.FileName)
		default:
			for _, f := range result.Files {
				fmt.Fprintln(stdout, f)
			}
		}
	}

	if !result.Found() {
		return exitNone
	}
	return exitFound
}

func setupGracefulShutdown(app *fiber.App, cleanup func()) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()

		log.Info().Msg("Received shutdown signal, initiating graceful shutdown")

		if cleanup != nil {
			cleanup()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Info().Msg("Stopping HTTP server...")
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during HTTP server shutdown")
		}

		log.Info().Msg("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func performHealthCheck() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{
		Timeout: 3 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
