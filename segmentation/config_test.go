package segmentation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/segmentation/activation"
	"github.com/kbukum/segmentation/config"
	"github.com/kbukum/segmentation/errors"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{GCP: GCPConfig{ProjectID: "my-project", Location: "EU"}}
	cfg.ApplyDefaults()

	if cfg.Name != ServiceName || cfg.OutputDir != "build" {
		t.Errorf("unexpected service defaults %q %q", cfg.Name, cfg.OutputDir)
	}
	if cfg.BigQuery.ProjectID != "my-project" || cfg.BigQuery.Location != "EU" {
		t.Errorf("bigquery did not inherit gcp settings: %+v", cfg.BigQuery)
	}
	if cfg.Activation.Transport != activation.TransportPubSub || cfg.Activation.PubSub.ProjectID != "my-project" {
		t.Errorf("unexpected activation defaults %+v", cfg.Activation)
	}
	if cfg.Pipelines.Training.ProjectID != "my-project" || cfg.Pipelines.Prediction.Location != "EU" {
		t.Errorf("pipelines did not inherit gcp settings: %+v", cfg.Pipelines)
	}
	if cfg.Metrics.ServiceName != ServiceName || cfg.Metrics.Interval <= 0 {
		t.Errorf("unexpected metric defaults %+v", cfg.Metrics)
	}
}

func TestConfig_ApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{GCP: GCPConfig{ProjectID: "my-project"}}
	cfg.BigQuery.ProjectID = "billing-project"
	cfg.Pipelines.Prediction.ProjectID = "scoring-project"
	cfg.ApplyDefaults()
	if cfg.BigQuery.ProjectID != "billing-project" || cfg.Pipelines.Prediction.ProjectID != "scoring-project" {
		t.Fatalf("explicit values were overwritten: %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"kafka", func(c *Config) { c.Activation.Transport = activation.TransportKafka }, false},
		{"unknown transport", func(c *Config) { c.Activation.Transport = "nats" }, true},
		{"negative parallelism", func(c *Config) { c.Engine.MaxParallel = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{GCP: GCPConfig{ProjectID: "my-project"}}
			cfg.ApplyDefaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfig_Params(t *testing.T) {
	cfg := Config{}
	cfg.Pipelines.Prediction = predictionParams()
	params, err := cfg.Params(PredictionPipelineName)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := params.(PredictionParams); !ok || got.ActivationTopic != "activations" {
		t.Fatalf("unexpected params %#v", params)
	}
	if _, err := cfg.Params("nope"); errors.CodeOf(err) != errors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

const testConfigYAML = `
gcp:
  project_id: file-project
  location: EU
activation:
  transport: kafka
  kafka:
    brokers: ["localhost:9092"]
engine:
  max_parallel: 2
pipelines:
  prediction:
    model_dataset_id: segmentation
    model_name_bq_prefix: segmentation_model
    model_metric_name: davies_bouldin_index
    model_metric_threshold: 0.5
    number_of_models_considered: 3
    bigquery_source: feature_store.users
    bigquery_destination_prefix: preds_
    pubsub_activation_topic: activations
    pubsub_activation_type: purchase-propensity
`

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SEGMENTATION_GCP_PROJECT_ID", "env-project")

	var cfg Config
	err := config.LoadConfig(ServiceName, &cfg,
		config.WithConfigFile(path),
		config.WithDefaults(Defaults()),
		config.WithEnvPrefix("SEGMENTATION"),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.GCP.ProjectID != "env-project" {
		t.Errorf("environment did not override gcp.project_id: %q", cfg.GCP.ProjectID)
	}
	if cfg.Activation.Transport != activation.TransportKafka || len(cfg.Activation.Kafka.Brokers) != 1 {
		t.Errorf("unexpected activation config %+v", cfg.Activation)
	}
	if cfg.Engine.MaxParallel != 2 {
		t.Errorf("unexpected engine config %+v", cfg.Engine)
	}
	pred := cfg.Pipelines.Prediction
	if pred.ProjectID != "env-project" || pred.Location != "EU" || pred.MetricThreshold != 0.5 || pred.ModelsConsidered != 3 {
		t.Errorf("unexpected prediction params %+v", pred)
	}
	if err := pred.Validate(); err != nil {
		t.Errorf("loaded params do not validate: %v", err)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	var cfg Config
	if err := config.LoadConfig(ServiceName, &cfg, config.WithConfigFile("/does/not/exist.yml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
