package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"
)

const maxFileNameLength = 4096

// InputValidator validates rulesets, settings and file names
type InputValidator struct {
	validate *validator.Validate
}

// NewInputValidator creates a new input validator
func NewInputValidator() *InputValidator {
	return &InputValidator{validate: validator.New()}
}

// NewValidator creates a new input validator instance
func NewValidator() Validator {
	return NewInputValidator()
}

// ValidateRuleset validates a ruleset structure and every pattern in it
func (v *InputValidator) ValidateRuleset(ruleset *Ruleset) error {
	if ruleset == nil {
		return NewAppError(ErrValidationFailed, "Ruleset cannot be nil", 422, nil)
	}

	if err := v.validate.Struct(ruleset); err != nil {
		return formatValidationError(err)
	}

	if len(ruleset.Rules) == 0 {
		return NewAppError(ErrValidationFailed, "Ruleset must contain at least one rule", 422, map[string]any{"field": "rules"})
	}

	for i, rule := range ruleset.Rules {
		if err := ValidatePattern(rule.Pattern); err != nil {
			return NewAppErrorWithCause(ErrRulePatternInvalid, "Invalid rule pattern", 422, err, map[string]any{
				"field":   fmt.Sprintf("rules[%d].pattern", i),
				"pattern": rule.Pattern,
			})
		}
	}

	return nil
}

// ValidateSettings validates the structure of a settings document. Bad patterns
// are not rejected here; they are isolated per rule at compile time.
func (v *InputValidator) ValidateSettings(settings *Settings) error {
	if settings == nil {
		return NewAppError(ErrValidationFailed, "Settings cannot be nil", 422, nil)
	}
	if err := v.validate.Struct(settings); err != nil {
		return formatValidationError(err)
	}
	for _, name := range settings.Applied() {
		if strings.TrimSpace(name) == "" {
			return NewAppError(ErrValidationFailed, "Applied ruleset names cannot be empty", 422, map[string]any{"field": "applyRulesets"})
		}
	}
	return nil
}

// ValidateFileName validates a file name submitted for resolution
func (v *InputValidator) ValidateFileName(fileName string) error {
	if strings.TrimSpace(fileName) == "" {
		return NewAppError(ErrValidationFailed, "File name is required", 422, map[string]any{"field": "fileName"})
	}
	if !utf8.ValidString(fileName) {
		return NewAppError(ErrValidationFailed, "File name must be valid UTF-8", 422, map[string]any{"field": "fileName"})
	}
	if len(fileName) > maxFileNameLength {
		return NewAppError(ErrValidationFailed, fmt.Sprintf("File name too long (max %d characters)", maxFileNameLength), 422, map[string]any{
			"field":      "fileName",
			"length":     len(fileName),
			"max_length": maxFileNameLength,
		})
	}
	if strings.ContainsRune(fileName, 0) {
		return NewAppError(ErrValidationFailed, "File name contains a NUL byte", 422, map[string]any{"field": "fileName"})
	}
	return nil
}

// ValidatePattern reports whether pattern compiles in the rule dialect
func ValidatePattern(pattern string) error {
	_, err := regexp2.Compile(pattern, regexp2.ECMAScript|regexp2.IgnoreCase)
	return err
}

// formatValidationError formats validation errors into a VALIDATION_FAILED AppError
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return NewAppErrorWithCause(ErrValidationFailed, "Validation failed", 422, err, nil)
	}

	messages := make([]string, 0, len(validationErrors))
	fields := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, e.Namespace())
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Namespace()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", e.Namespace(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Namespace(), e.Tag()))
		}
	}
	return NewAppErrorWithCause(ErrValidationFailed, strings.Join(messages, "; "), 422, err, map[string]any{"fields": fields})
}
