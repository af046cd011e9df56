package segmentation

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/validation"
)

// Params is a typed parameter set of one pipeline.
type Params interface {
	// Validate rejects values the pipeline cannot run with.
	Validate() error
	// Arguments returns the parameters keyed by pipeline parameter name.
	Arguments() (map[string]any, error)
}

// TrainingParams are the parameters of the training pipeline.
type TrainingParams struct {
	ProjectID       string   `yaml:"project_id" mapstructure:"project_id" validate:"required,bqproject"`
	Location        string   `yaml:"location" mapstructure:"location" validate:"required"`
	ModelDatasetID  string   `yaml:"model_dataset_id" mapstructure:"model_dataset_id" validate:"required,bqdataset"`
	ModelNamePrefix string   `yaml:"model_name_bq_prefix" mapstructure:"model_name_bq_prefix" validate:"required,bqident"`
	VertexModelName string   `yaml:"vertex_model_name" mapstructure:"vertex_model_name" validate:"required"`
	TrainingTable   string   `yaml:"training_data_bq_table" mapstructure:"training_data_bq_table" validate:"required,bqtable"`
	ExcludeFeatures []string `yaml:"exclude_features" mapstructure:"exclude_features" validate:"dive,bqident"`

	NumClusters         int     `yaml:"km_num_clusters" mapstructure:"km_num_clusters" validate:"gte=2"`
	InitMethod          string  `yaml:"km_init_method" mapstructure:"km_init_method" validate:"required,oneof=RANDOM KMEANS++"`
	DistanceType        string  `yaml:"km_distance_type" mapstructure:"km_distance_type" validate:"required,oneof=EUCLIDEAN COSINE"`
	StandardizeFeatures bool    `yaml:"km_standardize_features" mapstructure:"km_standardize_features"`
	MaxIterations       int     `yaml:"km_max_iterations" mapstructure:"km_max_iterations" validate:"gte=1"`
	EarlyStop           bool    `yaml:"km_early_stop" mapstructure:"km_early_stop"`
	MinRelProgress      float64 `yaml:"km_min_rel_progress" mapstructure:"km_min_rel_progress" validate:"gte=0,finite"`
	WarmStart           bool    `yaml:"km_warm_start" mapstructure:"km_warm_start"`
}

// Validate implements Params.
func (p TrainingParams) Validate() error { return validation.Validate(p) }

// Arguments implements Params.
func (p TrainingParams) Arguments() (map[string]any, error) {
	if p.ExcludeFeatures == nil {
		p.ExcludeFeatures = []string{}
	}
	return arguments(p)
}

// PredictionParams are the parameters of the prediction pipeline.
type PredictionParams struct {
	ProjectID string `yaml:"project_id" mapstructure:"project_id" validate:"required,bqproject"`
	// Location is optional; jobs then run in the dataset's location.
	Location         string  `yaml:"location" mapstructure:"location,omitempty"`
	ModelDatasetID   string  `yaml:"model_dataset_id" mapstructure:"model_dataset_id" validate:"required,bqdataset"`
	ModelNamePrefix  string  `yaml:"model_name_bq_prefix" mapstructure:"model_name_bq_prefix" validate:"required,bqident"`
	MetricName       string  `yaml:"model_metric_name" mapstructure:"model_metric_name" validate:"required,oneof=davies_bouldin_index mean_squared_distance"`
	MetricThreshold  float64 `yaml:"model_metric_threshold" mapstructure:"model_metric_threshold" validate:"gte=0,finite"`
	ModelsConsidered int     `yaml:"number_of_models_considered" mapstructure:"number_of_models_considered" validate:"gte=1"`

	Source            string `yaml:"bigquery_source" mapstructure:"bigquery_source" validate:"required,bqtable"`
	DestinationPrefix string `yaml:"bigquery_destination_prefix" mapstructure:"bigquery_destination_prefix" validate:"required,bqprefix"`

	ActivationTopic string `yaml:"pubsub_activation_topic" mapstructure:"pubsub_activation_topic" validate:"required"`
	ActivationType  string `yaml:"pubsub_activation_type" mapstructure:"pubsub_activation_type" validate:"required"`
}

// Validate implements Params.
func (p PredictionParams) Validate() error { return validation.Validate(p) }

// Arguments implements Params. An empty Location is left out.
func (p PredictionParams) Arguments() (map[string]any, error) { return arguments(p) }

func arguments(params any) (map[string]any, error) {
	args := map[string]any{}
	if err := mapstructure.Decode(params, &args); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", params, err)
	}
	return args, nil
}

// Override returns a copy of params with the named values replaced. Values
// are strings as given on a command line; lists are comma separated.
// An unknown name or a value of the wrong type is INVALID_INPUT.
func Override(params Params, set map[string]string) (Params, error) {
	if len(set) == 0 {
		return params, nil
	}
	switch p := params.(type) {
	case TrainingParams:
		if err := overlay(&p, set); err != nil {
			return nil, err
		}
		return p, nil
	case PredictionParams:
		if err := overlay(&p, set); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, errors.Internal(fmt.Errorf("unsupported parameter set %T", params))
}

func overlay(out any, set map[string]string) error {
	input := make(map[string]any, len(set))
	for k, v := range set {
		input[k] = v
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return errors.Internal(err)
	}
	if err := dec.Decode(input); err != nil {
		return errors.InvalidInput("set", err.Error())
	}
	return nil
}
