package segmentation

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/validation"
)

// Bind validates params and returns a copy of p whose parameter defaults
// are the parameter values. p is not modified.
func Bind(p *dag.Pipeline, params Params) (*dag.Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	args, err := params.Arguments()
	if err != nil {
		return nil, err
	}
	return dag.WithArguments(p, args)
}

// Compile binds params to p and renders the document as YAML. Invalid
// parameters, such as a metric outside the supported set, fail before
// anything is rendered.
func Compile(p *dag.Pipeline, params Params) ([]byte, error) {
	bound, err := Bind(p, params)
	if err != nil {
		return nil, err
	}
	if err := Check(bound); err != nil {
		return nil, err
	}
	return dag.Compile(bound)
}

// Check validates the wiring of p and checks every node against the
// segmentation component contracts. Parameter values bound into p are
// validated as Bind validates them.
func Check(p *dag.Pipeline) error {
	if err := dag.CheckPipeline(p, Components{}.Registry()); err != nil {
		return err
	}
	return checkBound(p)
}

// checkBound validates the parameter defaults of a bound document.
// Parameters left unbound are not reported.
func checkBound(p *dag.Pipeline) error {
	values := make(map[string]any, len(p.Params))
	for _, def := range p.Params {
		if def.Default != nil {
			values[def.Name] = def.Default
		}
	}
	if len(values) == 0 {
		return nil
	}

	var params Params
	switch p.Name {
	case TrainingPipelineName:
		var tp TrainingParams
		if err := mapstructure.Decode(values, &tp); err != nil {
			return errors.InvalidInput("params", err.Error())
		}
		params = tp
	case PredictionPipelineName:
		var pp PredictionParams
		if err := mapstructure.Decode(values, &pp); err != nil {
			return errors.InvalidInput("params", err.Error())
		}
		params = pp
	default:
		return nil
	}

	err := params.Validate()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return err
	}
	fields, ok := appErr.Details["fields"].([]validation.FieldError)
	if !ok {
		return err
	}
	v := validation.New()
	for _, f := range fields {
		name, _, _ := strings.Cut(f.Field, "[")
		if _, bound := values[name]; bound {
			v.AddError(f.Field, f.Message)
		}
	}
	return v.Err()
}
