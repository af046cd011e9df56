// Package validation validates pipeline parameters and component inputs.
//
// It supports struct tag validation (go-playground/validator) and
// programmatic validation with error collection. Both report failures as
// *errors.AppError with per-field details.
//
// # Struct Tag Validation
//
//	type PredictionParams struct {
//	    MetricName string `yaml:"model_metric_name" validate:"required,oneof=davies_bouldin_index mean_squared_distance"`
//	    Source     string `yaml:"bigquery_source" validate:"required,bqtable"`
//	}
//	err := validation.Validate(params)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("project_id", req.ProjectID).TableID("source", req.Source, 2)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
