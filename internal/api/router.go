package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/middleware"
)

// RouterConfig contains configuration for the HTTP router
type RouterConfig struct {
	CORSOrigins    []string
	BodyLimit      int
	RateLimitRPS   int
	RateLimitBurst int
	RequestTimeout time.Duration
}

// RouterDependencies contains all dependencies needed by the router
type RouterDependencies struct {
	Finder        RelatedFinder
	Registry      RulesetRegistry
	Settings      SettingsReloader
	Cache         domain.CacheManager
	Validator     domain.Validator
	HealthChecker domain.HealthChecker
}

// RouterResult contains the configured app and cleanup function
type RouterResult struct {
	App     *fiber.App
	Cleanup func()
}

// SetupRouter builds the Fiber app: middleware first, then the v1, system and swagger routes
func SetupRouter(deps RouterDependencies, config RouterConfig) *RouterResult {
	app := fiber.New(fiber.Config{
		BodyLimit:    config.BodyLimit,
		ErrorHandler: customErrorHandler,
	})

	handlers := NewHandlers(deps.Finder, deps.Registry, deps.Settings, deps.Cache, deps.Validator, deps.HealthChecker)
	handlers.SetTimeout(config.RequestTimeout)

	cleanup := useMiddleware(app, handlers, config)
	registerRoutes(app, handlers)

	return &RouterResult{App: app, Cleanup: cleanup}
}

// useMiddleware installs the pipeline in order: request id, request context,
// access log, panic recovery, security headers, rate limit, CORS. It returns
// the function that stops background middleware work.
func useMiddleware(app *fiber.App, handlers *Handlers, config RouterConfig) func() {
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: newRequestID,
	}))
	app.Use(requestContextMiddleware())
	app.Use(accessLogMiddleware())
	app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: logPanic,
	}))
	app.Use(securityHeadersMiddleware())

	stop := func() {}
	if config.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
		stop = limiter.StartCleanupRoutine()
		handlers.rateLimitStats = limiter.GetStats
		app.Use(limiter.Middleware())
	}

	if len(config.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(config.CORSOrigins, ","),
			AllowMethods: "GET,POST,DELETE,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept,X-API-Key,X-Request-ID",
			MaxAge:       86400,
		}))
	}

	return stop
}

func registerRoutes(app *fiber.App, handlers *Handlers) {
	v1 := app.Group("/v1")
	v1.Post("/related", handlers.RelatedHandler)
	v1.Get("/rulesets", handlers.ListRulesetsHandler)
	v1.Post("/rulesets", handlers.RegisterRulesetHandler)
	v1.Delete("/rulesets/:id", handlers.UnregisterRulesetHandler)
	v1.Post("/reload", handlers.ReloadHandler)

	app.Get("/health", handlers.HealthHandler)
	app.Get("/metrics", handlers.MetricsHandler)
	app.Get("/swagger/*", swagger.HandlerDefault)
}

// customErrorHandler renders framework errors and recovered panics in the API error format
func customErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	}

	code := domain.ErrInternal
	switch status {
	case fiber.StatusRequestEntityTooLarge:
		code, message = domain.ErrTooLarge, "Request payload too large"
	case fiber.StatusNotFound:
		code = domain.ErrNotFound
	case fiber.StatusBadRequest:
		code = domain.ErrInvalidInput
	case fiber.StatusMethodNotAllowed:
		code = domain.ErrInvalidInput
	}

	return c.Status(status).JSON(ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func newRequestID() string {
	return uuid.New().String()
}

func logPanic(c *fiber.Ctx, e any) {
	log.Error().
		Str("request_id", requestID(c)).
		Interface("panic", e).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("Panic recovered")
}

// accessLogMiddleware logs one line per request; 4xx at warn, 5xx at error
func accessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// Errors returned past this point are rendered by the error handler
		// after the middleware unwinds; render now so the status is final.
		if err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		status := c.Response().StatusCode()
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}

		rid := requestID(c)
		if rid == "" {
			rid = "unknown"
		}

		event.
			Str("request_id", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP()).
			Str("user_agent", c.Get(fiber.HeaderUserAgent)).
			Int("response_size", len(c.Response().Body())).
			Msg("HTTP request processed")

		return err
	}
}

// requestContextMiddleware copies the request id into the user context
func requestContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid := requestID(c); rid != "" {
			c.SetUserContext(context.WithValue(c.UserContext(), domain.RequestIDKey, rid))
		}
		return c.Next()
	}
}

func securityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
		c.Set(fiber.HeaderXFrameOptions, "DENY")
		c.Set(fiber.HeaderReferrerPolicy, "no-referrer")
		c.Set("Cross-Origin-Resource-Policy", "same-origin")
		return c.Next()
	}
}
