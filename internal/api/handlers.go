package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/domain"
	"github.com/freewebtopdf/find-related/internal/loader"
)

// RelatedFinder resolves the related files of one file name
type RelatedFinder interface {
	FindRelated(ctx context.Context, fileName, rootPath string, doc domain.Document) (*domain.RelatedResult, error)
	GetStats(ctx context.Context) map[string]any
}

// RulesetRegistry exposes the registry operations the API needs
type RulesetRegistry interface {
	domain.RuleProvider
	RegisterDefinitions(name string, defs []domain.RuleDefinition) string
	Unregister(id string) error
}

// SettingsReloader rereads the settings files
type SettingsReloader interface {
	Reload(ctx context.Context) error
	GetLoadErrors() []loader.LoadError
}

// Handlers contains all HTTP handlers for the find-related API
type Handlers struct {
	finder        RelatedFinder
	registry      RulesetRegistry
	settings      SettingsReloader
	cache         domain.CacheManager
	validator     domain.Validator
	healthChecker domain.HealthChecker
	timeout       time.Duration

	rateLimitStats func() map[string]any
}

// NewHandlers creates a new instance of API handlers
func NewHandlers(finder RelatedFinder, registry RulesetRegistry, settings SettingsReloader, cache domain.CacheManager, validator domain.Validator, healthChecker domain.HealthChecker) *Handlers {
	return &Handlers{
		finder:        finder,
		registry:      registry,
		settings:      settings,
		cache:         cache,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// SetTimeout bounds the time a single resolution may take. Zero disables the bound.
func (h *Handlers) SetTimeout(timeout time.Duration) {
	h.timeout = timeout
}

// RelatedRequest represents the request payload for the related endpoint
// @Description Request payload for related-file resolution
type RelatedRequest struct {
	FileName   string `json:"fileName" example:"src/foo.ts"`
	RootPath   string `json:"rootPath,omitempty" example:"/home/dev/project"`
	LanguageID string `json:"languageId,omitempty" example:"typescript"`
}

// RegisterRulesetResponse represents the response for a registered ruleset
// @Description Registration handle of a ruleset
type RegisterRulesetResponse struct {
	ID        string `json:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Name      string `json:"name" example:"typescript"`
	RuleCount int    `json:"rule_count" example:"2"`
}

// RulesetListResponse represents the response for listing rulesets
// @Description Configured and registered rulesets
type RulesetListResponse struct {
	Rulesets []domain.RulesetInfo `json:"rulesets"`
	Count    int                  `json:"count" example:"11"`
}

// ReloadResponse represents the response of a settings reload
// @Description Result of rereading the settings files
type ReloadResponse struct {
	Rulesets   int                `json:"rulesets" example:"11"`
	LoadErrors []loader.LoadError `json:"load_errors"`
}

// ErrorResponse represents the standard error response format
// @Description Standard error response format
type ErrorResponse struct {
	Status  string `json:"status" example:"error"`
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Invalid input provided"`
	Details any    `json:"details,omitempty"`
}

// SuccessResponse represents the standard success response format
// @Description Standard success response format
type SuccessResponse struct {
	Status string `json:"status" example:"success"`
	Data   any    `json:"data"`
}

// RelatedHandler handles POST /v1/related requests
// @Summary      Find related files
// @Description  Matches a file name against the active rules and returns the related files found under the root
// @Tags         Resolution
// @Accept       json
// @Produce      json
// @Param        request body RelatedRequest true "File to resolve"
// @Success      200 {object} SuccessResponse{data=domain.RelatedResult} "Resolution finished; see outcome"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Failure      503 {object} ErrorResponse "Settings unavailable"
// @Router       /v1/related [post]
func (h *Handlers) RelatedHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	var req RelatedRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		).WithContext(ctx, "related_request_parsing"))
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.RootPath = strings.TrimSpace(req.RootPath)
	if err := h.validator.ValidateFileName(req.FileName); err != nil {
		return h.sendError(c, asAppError(err).WithContext(ctx, "related_request_validation"))
	}

	result, err := h.finder.FindRelated(ctx, req.FileName, req.RootPath, domain.Document{
		FileName:   req.FileName,
		LanguageID: req.LanguageID,
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("file", req.FileName).
			Str("request_id", requestID(c)).
			Msg("Failed to resolve related files")
		return h.sendError(c, asAppError(err).WithContext(ctx, "find_related"))
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   result,
	})
}

// ListRulesetsHandler handles GET /v1/rulesets requests
// @Summary      List rulesets
// @Description  Lists every configured ruleset with its scope, applied and shadowed state, then every registered ruleset
// @Tags         Rulesets
// @Produce      json
// @Success      200 {object} SuccessResponse{data=RulesetListResponse} "Successfully retrieved rulesets"
// @Router       /v1/rulesets [get]
func (h *Handlers) ListRulesetsHandler(c *fiber.Ctx) error {
	rulesets := h.registry.Rulesets(c.UserContext())
	if rulesets == nil {
		rulesets = []domain.RulesetInfo{}
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: RulesetListResponse{
			Rulesets: rulesets,
			Count:    len(rulesets),
		},
	})
}

// RegisterRulesetHandler handles POST /v1/rulesets requests
// @Summary      Register a ruleset
// @Description  Registers a static ruleset at runtime. Registered rules follow the configured ones in the active list.
// @Tags         Rulesets
// @Accept       json
// @Produce      json
// @Param        ruleset body domain.Ruleset true "Ruleset to register"
// @Success      201 {object} SuccessResponse{data=RegisterRulesetResponse} "Successfully registered ruleset"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      422 {object} ErrorResponse "Validation failed or invalid pattern"
// @Router       /v1/rulesets [post]
func (h *Handlers) RegisterRulesetHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var ruleset domain.Ruleset
	if err := c.BodyParser(&ruleset); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		).WithContext(ctx, "register_ruleset_parsing"))
	}

	ruleset.Name = strings.TrimSpace(ruleset.Name)
	for i := range ruleset.Rules {
		ruleset.Rules[i].Pattern = strings.TrimSpace(ruleset.Rules[i].Pattern)
	}

	if err := h.validator.ValidateRuleset(&ruleset); err != nil {
		return h.sendError(c, asAppError(err).WithContext(ctx, "register_ruleset_validation"))
	}

	id := h.registry.RegisterDefinitions(ruleset.Name, ruleset.Rules)
	log.Info().Str("id", id).Str("ruleset", ruleset.Name).Int("rules", len(ruleset.Rules)).Msg("Ruleset registered")

	return c.Status(201).JSON(SuccessResponse{
		Status: "success",
		Data: RegisterRulesetResponse{
			ID:        id,
			Name:      ruleset.Name,
			RuleCount: len(ruleset.Rules),
		},
	})
}

// UnregisterRulesetHandler handles DELETE /v1/rulesets/:id requests
// @Summary      Unregister a ruleset
// @Description  Disposes a registration by id. Other registrations with the same name are kept.
// @Tags         Rulesets
// @Produce      json
// @Param        id path string true "Registration ID" format(uuid)
// @Success      200 {object} SuccessResponse{data=object{message=string,id=string}} "Successfully unregistered"
// @Failure      404 {object} ErrorResponse "Registration not found"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Router       /v1/rulesets/{id} [delete]
func (h *Handlers) UnregisterRulesetHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return h.sendError(c, domain.NewAppError(
			domain.ErrValidationFailed,
			"Registration ID is required",
			422,
			map[string]string{"field": "id", "reason": "required"},
		))
	}

	if err := h.registry.Unregister(id); err != nil {
		return h.sendError(c, asAppError(err).WithContext(ctx, "unregister_ruleset"))
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"message": "Ruleset unregistered successfully",
			"id":      id,
		},
	})
}

// ReloadHandler handles POST /v1/reload requests
// @Summary      Reload settings
// @Description  Rereads the user and workspace settings files and recompiles the active rule list
// @Tags         Rulesets
// @Produce      json
// @Success      200 {object} SuccessResponse{data=ReloadResponse} "Settings reloaded"
// @Failure      422 {object} ErrorResponse "A settings file is invalid; previous settings kept"
// @Failure      503 {object} ErrorResponse "Settings unavailable"
// @Router       /v1/reload [post]
func (h *Handlers) ReloadHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if err := h.settings.Reload(ctx); err != nil {
		log.Warn().Err(err).Str("request_id", requestID(c)).Msg("Settings reload failed")
		return h.sendError(c, asAppError(err).WithContext(ctx, "reload_settings"))
	}
	if err := h.registry.Recompile(ctx); err != nil {
		return h.sendError(c, asAppError(err).WithContext(ctx, "recompile"))
	}

	loadErrors := h.settings.GetLoadErrors()
	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: ReloadResponse{
			Rulesets:   len(h.registry.Rulesets(ctx)),
			LoadErrors: loadErrors,
		},
	})
}

// HealthHandler handles GET /health requests
// @Summary      Health check
// @Description  Returns the health status of the service and its components
// @Tags         System
// @Produce      json
// @Success      200 {object} domain.SystemHealth "Service is healthy"
// @Failure      503 {object} domain.SystemHealth "Service is degraded or unhealthy"
// @Router       /health [get]
func (h *Handlers) HealthHandler(c *fiber.Ctx) error {
	health := h.healthChecker.CheckHealth(c.UserContext())

	status := 200
	if health.Status != domain.HealthStatusHealthy {
		status = 503
	}

	return c.Status(status).JSON(map[string]any{
		"status":     health.Status,
		"timestamp":  health.Timestamp.Format(time.RFC3339),
		"components": health.Components,
		"uptime":     health.Uptime,
	})
}

// MetricsHandler handles GET /metrics requests
// @Summary      System metrics
// @Description  Returns pattern cache statistics, registry statistics and resolution counters
// @Tags         System
// @Produce      json
// @Success      200 {object} SuccessResponse "Successfully retrieved metrics"
// @Router       /metrics [get]
func (h *Handlers) MetricsHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	cacheStats := h.cache.Stats()

	data := map[string]any{
		"cache": map[string]any{
			"hits":      cacheStats.Hits,
			"misses":    cacheStats.Misses,
			"size":      cacheStats.Size,
			"max_size":  cacheStats.MaxSize,
			"hit_ratio": cacheStats.HitRatio,
		},
		"registry":   h.registry.GetStats(ctx),
		"resolution": h.finder.GetStats(ctx),
		"uptime": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if h.rateLimitStats != nil {
		data["rate_limit"] = h.rateLimitStats()
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   data,
	})
}

// sendError sends a standardized error response. An error built without a
// status code gets one from its error code.
func (h *Handlers) sendError(c *fiber.Ctx, appErr *domain.AppError) error {
	status := appErr.StatusCode
	if status == 0 {
		status = statusForCode(appErr)
	}
	return c.Status(status).JSON(ErrorResponse{
		Status:  "error",
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

func statusForCode(err error) int {
	switch {
	case domain.IsTimeout(err):
		return fiber.StatusRequestTimeout
	case domain.IsNotFound(err):
		return fiber.StatusNotFound
	case domain.IsValidationError(err), domain.IsPatternInvalid(err):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// asAppError returns the AppError inside err, or wraps err as an internal error
func asAppError(err error) *domain.AppError {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return domain.NewAppErrorWithCause(domain.ErrInternal, "Internal server error", 500, err, nil)
}

func requestID(c *fiber.Ctx) string {
	if rid, ok := c.Locals("requestid").(string); ok {
		return rid
	}
	return ""
}
