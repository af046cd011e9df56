package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/segmentation/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Field names in errors follow the yaml tag, which is also the pipeline parameter name.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return toSnakeCase(fld.Name)
			}
			return name
		})

		_ = validate.RegisterValidation("bqproject", func(fl validator.FieldLevel) bool {
			return IsProjectID(fl.Field().String())
		})
		_ = validate.RegisterValidation("bqdataset", func(fl validator.FieldLevel) bool {
			return IsDatasetPath(fl.Field().String())
		})
		_ = validate.RegisterValidation("bqtable", func(fl validator.FieldLevel) bool {
			return IsTablePath(fl.Field().String(), 2)
		})
		_ = validate.RegisterValidation("bqprefix", func(fl validator.FieldLevel) bool {
			return IsTablePath(fl.Field().String(), 1)
		})
		_ = validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			return IsFinite(fl.Field().Float())
		})
		_ = validate.RegisterValidation("bqident", func(fl validator.FieldLevel) bool {
			return identifierPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate validates a struct using struct tags.
// Uses tags like `validate:"required,oneof=RANDOM KMEANS++"`.
func Validate(s any) error {
	v := getValidator()
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation("validation failed").WithCause(err)
	}

	fieldErrors := make([]FieldError, 0, len(validationErrors))
	messages := make([]string, 0, len(validationErrors))

	for _, e := range validationErrors {
		fieldName := e.Field()
		message := formatValidationError(e)
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldName,
			Message: message,
		})
		messages = append(messages, fieldName+": "+message)
	}

	appErr := errors.Validation(strings.Join(messages, "; "))
	appErr.Details = map[string]any{
		"fields": fieldErrors,
	}

	return appErr
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "bqproject":
		return "must be a valid GCP project id"
	case "bqdataset":
		return "must be a dataset id, optionally qualified by project"
	case "bqtable":
		return "must be a dataset-qualified table id"
	case "bqprefix":
		return "must be a table name prefix, optionally qualified"
	case "bqident":
		return "must contain only letters, digits and underscores"
	case "finite":
		return "must be a finite number"
	case "dive":
		return "contains an invalid element"
	default:
		return "is invalid"
	}
}

// toSnakeCase converts a field name to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		if r >= 'A' && r <= 'Z' {
			result.WriteRune(r + 32)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
