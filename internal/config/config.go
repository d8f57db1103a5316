package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the find-related service
type Config struct {
	Server struct {
		Port         int           `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
		BodyLimit    int           `env:"BODY_LIMIT" envDefault:"1048576" validate:"min=1"` // 1MB
	}

	Settings struct {
		WorkspaceRoot string        `env:"WORKSPACE_ROOT"`
		UserFile      string        `env:"USER_SETTINGS_FILE"`
		Watch         bool          `env:"WATCH_SETTINGS" envDefault:"false"`
		WatchDebounce time.Duration `env:"WATCH_DEBOUNCE" envDefault:"250ms"`
	}

	Resolution struct {
		LookupTimeout     time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"10s"`
		MaxConcurrent     int           `env:"MAX_CONCURRENT_LOOKUPS" envDefault:"16" validate:"min=1,max=1024"`
		MaxResults        int           `env:"MAX_RESULTS" envDefault:"0" validate:"min=0"`
		RegexMatchTimeout time.Duration `env:"REGEX_MATCH_TIMEOUT" envDefault:"100ms"`
	}

	Cache struct {
		PatternCacheSize int `env:"PATTERN_CACHE_SIZE" envDefault:"1024" validate:"min=16"`
	}

	Security struct {
		CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," validate:"cors_origins"`
		RateLimitRPS   int      `env:"RATE_LIMIT_RPS" envDefault:"50" validate:"min=1"`
		RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"100" validate:"min=1"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
		Format string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
	}
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if cfg.Settings.WorkspaceRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Settings.WorkspaceRoot = wd
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration using struct tags
func Validate(cfg *Config) error {
	validator := validator.New()

	if err := validator.RegisterValidation("cors_origins", validateCORSOrigins); err != nil {
		return fmt.Errorf("failed to register cors_origins validation: %w", err)
	}

	if err := validator.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCORSOrigins validates CORS origins format
func validateCORSOrigins(fl validator.FieldLevel) bool {
	origins := fl.Field().Interface().([]string)
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return false
		}
	}
	return true
}

// validateCustomRules performs additional validation beyond struct tags
func validateCustomRules(cfg *Config) error {
	if cfg.Server.ReadTimeout < time.Millisecond {
		return fmt.Errorf("read timeout must be at least 1ms")
	}
	if cfg.Server.WriteTimeout < time.Millisecond {
		return fmt.Errorf("write timeout must be at least 1ms")
	}
	if cfg.Resolution.LookupTimeout < 0 {
		return fmt.Errorf("lookup timeout cannot be negative")
	}
	if cfg.Resolution.RegexMatchTimeout < 0 {
		return fmt.Errorf("regex match timeout cannot be negative")
	}
	if cfg.Settings.Watch && cfg.Settings.WatchDebounce < time.Millisecond {
		return fmt.Errorf("watch debounce must be at least 1ms")
	}
	if cfg.Settings.WorkspaceRoot != "" {
		info, err := os.Stat(cfg.Settings.WorkspaceRoot)
		if err != nil {
			return fmt.Errorf("workspace root %s: %w", cfg.Settings.WorkspaceRoot, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("workspace root %s is not a directory", cfg.Settings.WorkspaceRoot)
		}
	}
	return nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
			case "oneof":
				messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
			case "cors_origins":
				messages = append(messages, fmt.Sprintf("%s contains invalid origin format", e.Field()))
			default:
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag()))
			}
		}
		return fmt.Errorf("validation errors: %s", strings.Join(messages, "; "))
	}
	return err
}
