package segmentation

import (
	"fmt"

	"github.com/kbukum/segmentation/activation"
	"github.com/kbukum/segmentation/bq"
	"github.com/kbukum/segmentation/config"
	"github.com/kbukum/segmentation/observability"
	"github.com/kbukum/segmentation/version"
)

// ServiceName names the binary in logs, traces and config discovery.
const ServiceName = "segmentation"

// Config is the configuration of the segmentation binary.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	GCP        GCPConfig                 `yaml:"gcp" mapstructure:"gcp"`
	BigQuery   bq.Config                 `yaml:"bigquery" mapstructure:"bigquery"`
	Activation activation.Config         `yaml:"activation" mapstructure:"activation"`
	Metrics    observability.MeterConfig `yaml:"metrics" mapstructure:"metrics"`
	Engine     EngineConfig              `yaml:"engine" mapstructure:"engine"`
	Pipelines  PipelinesConfig           `yaml:"pipelines" mapstructure:"pipelines"`
	// OutputDir receives compiled documents.
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// GCPConfig holds the project and location shared by every client and
// used when pipeline parameters leave them out.
type GCPConfig struct {
	ProjectID string `yaml:"project_id" mapstructure:"project_id"`
	Location  string `yaml:"location" mapstructure:"location"`
}

// EngineConfig configures local execution.
type EngineConfig struct {
	// MaxParallel limits concurrent nodes per level (0 = unlimited).
	MaxParallel int `yaml:"max_parallel" mapstructure:"max_parallel"`
}

// PipelinesConfig holds the parameters each pipeline is compiled or run with.
type PipelinesConfig struct {
	Training   TrainingParams   `yaml:"training" mapstructure:"training"`
	Prediction PredictionParams `yaml:"prediction" mapstructure:"prediction"`
}

// ApplyDefaults fills unset fields. The GCP project and location flow into
// the clients and into pipeline parameters that leave them empty.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()

	if c.BigQuery.ProjectID == "" {
		c.BigQuery.ProjectID = c.GCP.ProjectID
	}
	if c.BigQuery.Location == "" {
		c.BigQuery.Location = c.GCP.Location
	}
	c.BigQuery.ApplyDefaults()

	if c.Activation.PubSub.ProjectID == "" {
		c.Activation.PubSub.ProjectID = c.GCP.ProjectID
	}
	c.Activation.ApplyDefaults()

	d := observability.DefaultMeterConfig(c.Name)
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.Name
	}
	if c.Metrics.ServiceVersion == "" {
		c.Metrics.ServiceVersion = version.GetShortVersion()
	}
	if c.Metrics.Environment == "" {
		c.Metrics.Environment = c.Environment
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = d.Endpoint
		c.Metrics.Insecure = d.Insecure
	}
	if c.Metrics.Interval <= 0 {
		c.Metrics.Interval = d.Interval
	}

	t := &c.Pipelines.Training
	if t.ProjectID == "" {
		t.ProjectID = c.GCP.ProjectID
	}
	if t.Location == "" {
		t.Location = c.GCP.Location
	}
	p := &c.Pipelines.Prediction
	if p.ProjectID == "" {
		p.ProjectID = c.GCP.ProjectID
	}
	if p.Location == "" {
		p.Location = c.GCP.Location
	}

	if c.OutputDir == "" {
		c.OutputDir = "build"
	}
}

// Validate checks the configuration needed by every command. Client
// settings are checked when a Service is created.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	switch c.Activation.Transport {
	case activation.TransportPubSub, activation.TransportKafka:
	default:
		return fmt.Errorf("config.activation.transport must be %q or %q (got: %s)",
			activation.TransportPubSub, activation.TransportKafka, c.Activation.Transport)
	}
	if c.Engine.MaxParallel < 0 {
		return fmt.Errorf("config.engine.max_parallel must not be negative")
	}
	return nil
}

// Params returns the configured parameters of the named pipeline.
func (c *Config) Params(pipeline string) (Params, error) {
	switch pipeline {
	case TrainingPipelineName:
		return c.Pipelines.Training, nil
	case PredictionPipelineName:
		return c.Pipelines.Prediction, nil
	}
	_, err := Lookup(pipeline)
	return nil, err
}

// Defaults are registered with the config loader so that every key can be
// overridden from the environment, e.g. SEGMENTATION_GCP_PROJECT_ID.
func Defaults() map[string]any {
	return map[string]any{
		"name":                     ServiceName,
		"environment":              "development",
		"logging.level":            "info",
		"logging.format":           "console",
		"gcp.project_id":           "",
		"gcp.location":             "",
		"bigquery.project_id":      "",
		"bigquery.location":        "",
		"activation.transport":     activation.TransportPubSub,
		"activation.kafka.brokers": []string{},
		"tracing.enabled":          false,
		"metrics.enabled":          false,
		"engine.max_parallel":      0,
		"output_dir":               "build",
	}
}
