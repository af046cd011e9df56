package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/kbukum/segmentation/component"
	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/segmentation"
)

const testConfig = `
gcp:
  project_id: my-project
  location: US
logging:
  level: error
pipelines:
  training:
    model_dataset_id: segmentation
    model_name_bq_prefix: segmentation_model
    vertex_model_name: audience-segments
    training_data_bq_table: feature_store.users
    exclude_features: [user_id]
    km_num_clusters: 4
    km_init_method: KMEANS++
    km_distance_type: EUCLIDEAN
    km_max_iterations: 20
    km_min_rel_progress: 0.01
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

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootFlags.configFile, rootFlags.envFile, rootFlags.logLevel = "", "", ""
	compileFlags.outputDir, compileFlags.unbound = "", false
	// StringToString flags merge into the map once set, so it must stay non-nil.
	compileFlags.set = map[string]string{}
	versionFlags.full = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDescribe(t *testing.T) {
	out, err := execute(t, "describe", segmentation.PredictionPipelineName)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	for _, want := range []string{
		"prediction-pipeline",
		"model_metric_name",
		"elect_latest_model",
		"1. select_best_model",
		"4. activate",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	if _, err := execute(t, "describe", "nope"); err == nil {
		t.Fatal("expected an error for an unknown pipeline")
	}
}

func TestCompileAndValidate(t *testing.T) {
	cfg := writeConfig(t, testConfig)
	dir := t.TempDir()

	out, err := execute(t, "compile", "-c", cfg, "-o", dir)
	if err != nil {
		t.Fatalf("compile: %v\n%s", err, out)
	}
	var paths []string
	for _, name := range segmentation.Names() {
		path := filepath.Join(dir, name+".yaml")
		if !strings.Contains(out, path) {
			t.Errorf("expected %s in output:\n%s", path, out)
		}
		paths = append(paths, path)
	}

	p, err := dag.LoadPipeline(segmentation.PredictionPipelineName, paths[0])
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, _ := p.Param("project_id")
	if def.Default != "my-project" {
		t.Errorf("expected project_id bound from gcp config, got %v", def.Default)
	}

	out, err = execute(t, append([]string{"validate"}, paths...)...)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if strings.Count(out, "ok ") != 2 {
		t.Errorf("expected two valid documents:\n%s", out)
	}
}

func TestCompile_InvalidParams(t *testing.T) {
	cfg := writeConfig(t, strings.Replace(testConfig, "davies_bouldin_index", "foo", 1))
	if _, err := execute(t, "compile", "-c", cfg, "-o", t.TempDir(), segmentation.PredictionPipelineName); err == nil {
		t.Fatal("expected compile to reject an unsupported metric")
	}
}

func TestCompile_Unbound(t *testing.T) {
	cfg := writeConfig(t, "gcp:\n  project_id: my-project\n")
	dir := t.TempDir()
	if out, err := execute(t, "compile", "-c", cfg, "-o", dir, "--unbound"); err != nil {
		t.Fatalf("compile: %v\n%s", err, out)
	}
	p, err := dag.LoadPipeline(segmentation.TrainingPipelineName, filepath.Join(dir, segmentation.TrainingPipelineName+".yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, def := range p.Params {
		if def.Default != nil {
			t.Fatalf("expected an unbound template, %s = %v", def.Name, def.Default)
		}
	}
}

func TestCompile_UnboundRejectsSet(t *testing.T) {
	cfg := writeConfig(t, testConfig)
	dir := t.TempDir()
	_, err := execute(t, "compile", "-c", cfg, "-o", dir, "--unbound", "--set", "km_num_clusters=8")
	if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("nothing should be written, found %d files", len(entries))
	}
}

func TestValidate_RejectsBoundDefaults(t *testing.T) {
	cfg := writeConfig(t, testConfig)
	dir := t.TempDir()
	if out, err := execute(t, "compile", "-c", cfg, "-o", dir, segmentation.PredictionPipelineName); err != nil {
		t.Fatalf("compile: %v\n%s", err, out)
	}
	path := filepath.Join(dir, segmentation.PredictionPipelineName+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(data), "davies_bouldin_index", "foo", 1)
	if err := os.WriteFile(path, []byte(edited), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "validate", path)
	if err == nil {
		t.Fatalf("expected validation to fail:\n%s", out)
	}
	if !strings.Contains(out, "FAIL") || !strings.Contains(out, "model_metric_name") {
		t.Fatalf("expected the bound parameter to be reported:\n%s", out)
	}
}

func TestValidate_ReportsProblems(t *testing.T) {
	p := segmentation.PredictionPipeline()
	p.Nodes[2], p.Nodes[3] = p.Nodes[3], p.Nodes[2]
	data, err := yaml.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "validate", path)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if !strings.Contains(out, "FAIL") || !strings.Contains(out, "declared later") {
		t.Fatalf("expected the problem to be listed:\n%s", out)
	}
}

type stubComponent struct{ health component.Health }

func (s stubComponent) Name() string                            { return s.health.Name }
func (s stubComponent) Start(context.Context) error             { return nil }
func (s stubComponent) Stop(context.Context) error              { return nil }
func (s stubComponent) Health(context.Context) component.Health { return s.health }

func TestRequireHealthy(t *testing.T) {
	ok := stubComponent{component.Health{Name: "segmentation", Status: component.StatusDegraded}}
	if err := requireHealthy(ok)(context.Background()); err != nil {
		t.Fatalf("a degraded service may run: %v", err)
	}
	down := stubComponent{component.Health{Name: "segmentation", Status: component.StatusUnhealthy, Message: "not healthy: bigquery"}}
	err := requireHealthy(down)(context.Background())
	if errors.CodeOf(err) != errors.ErrCodeServiceUnavailable {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
}

func TestPrintRun(t *testing.T) {
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	run := &dag.Run{
		ID:        uuid.New(),
		Pipeline:  segmentation.TrainingPipelineName,
		Arguments: map[string]any{"project_id": "my-project"},
		Outputs:   map[string]any{"train.model": "my-project.segmentation.m_1"},
		Result: &dag.Result{
			NodeResults: map[string]dag.NodeResult{
				"train":    {Name: "train", Status: dag.StatusCompleted, Duration: time.Second},
				"evaluate": {Name: "evaluate", Status: dag.StatusSkipped, Error: context.Canceled},
			},
			Order: []string{"train", "evaluate"},
			Total: 2,
		},
		Started:  started,
		Finished: started.Add(2 * time.Second),
	}
	var out bytes.Buffer
	if err := printRun(&out, run); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"outputs:", "train.model: my-project.segmentation.m_1", "status: skipped", "duration: 2s"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in:\n%s", want, out.String())
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil || strings.TrimSpace(out) == "" {
		t.Fatalf("unexpected version output %q, %v", out, err)
	}
}
