package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kbukum/segmentation/errors"
)

// identifierPattern matches a dataset, model or table name segment.
// projectPattern matches a GCP project id.
var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	projectPattern    = regexp.MustCompile(`^[a-z][a-z0-9\-]{4,61}[a-z0-9]$`)
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns an AppError if there are validation errors, nil otherwise.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}

	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}

	appErr := errors.Validation(strings.Join(messages, "; "))
	appErr.Details = map[string]any{
		"fields": v.errors,
	}

	return appErr
}

// Err is Validate returned as a plain error, nil when there is nothing to report.
func (v *Validator) Err() error {
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// Identifier checks that value is a single BigQuery name segment.
func (v *Validator) Identifier(field, value string) *Validator {
	if value == "" {
		return v
	}
	if !identifierPattern.MatchString(value) {
		v.AddError(field, "must contain only letters, digits and underscores")
	}
	return v
}

// ProjectID checks that value is a valid GCP project id.
func (v *Validator) ProjectID(field, value string) *Validator {
	if value == "" {
		return v
	}
	if !IsProjectID(value) {
		v.AddError(field, "must be a valid GCP project id")
	}
	return v
}

// TableID checks that value is a dotted BigQuery path of at most three segments
// ([project.]dataset.table). minSegments controls how qualified it must be.
func (v *Validator) TableID(field, value string, minSegments int) *Validator {
	if value == "" {
		return v
	}
	if !IsTablePath(value, minSegments) {
		v.AddError(field, fmt.Sprintf("must be a BigQuery path with %d to 3 dot-separated segments", minSegments))
	}
	return v
}

// DatasetID checks that value is "dataset" or "project.dataset".
func (v *Validator) DatasetID(field, value string) *Validator {
	if value == "" {
		return v
	}
	if !IsDatasetPath(value) {
		v.AddError(field, "must be a dataset id, optionally qualified by project")
	}
	return v
}

// Min checks if a number meets minimum value.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	if value < minVal {
		v.AddError(field, fmt.Sprintf("must be at least %d", minVal))
	}
	return v
}

// NonNegative checks that a float is finite and zero or positive.
func (v *Validator) NonNegative(field string, value float64) *Validator {
	switch {
	case !IsFinite(value):
		v.AddError(field, "must be a finite number")
	case value < 0:
		v.AddError(field, "must not be negative")
	}
	return v
}

// IsFinite reports whether f is neither NaN nor an infinity.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// OneOf checks if a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}

// IsProjectID reports whether s is a valid GCP project id.
func IsProjectID(s string) bool {
	return projectPattern.MatchString(s)
}

// IsTablePath reports whether s is a dotted path of minSegments..3 segments.
// The leading segment of a three-part path is a project id.
func IsTablePath(s string, minSegments int) bool {
	parts := strings.Split(s, ".")
	if len(parts) < minSegments || len(parts) > 3 {
		return false
	}
	start := 0
	if len(parts) == 3 {
		if !IsProjectID(parts[0]) {
			return false
		}
		start = 1
	}
	for _, p := range parts[start:] {
		if !identifierPattern.MatchString(p) {
			return false
		}
	}
	return true
}

// IsDatasetPath reports whether s is "dataset" or "project.dataset".
func IsDatasetPath(s string) bool {
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return identifierPattern.MatchString(parts[0])
	case 2:
		return IsProjectID(parts[0]) && identifierPattern.MatchString(parts[1])
	default:
		return false
	}
}
