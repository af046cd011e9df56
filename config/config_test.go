package config

import (
	"os"
	"path/filepath"
	"testing"
)

type fakeFS struct {
	files  map[string]bool
	loaded []string
}

func (f *fakeFS) Exists(path string) bool { return f.files[path] }
func (f *fakeFS) LoadEnv(path string) error {
	f.loaded = append(f.loaded, path)
	return nil
}

func TestResolveFiles_SearchOrder(t *testing.T) {
	fs := &fakeFS{files: map[string]bool{
		"./cmd/segmentation/config.yml": true,
		"./config.yml":                  true,
		"./.env":                        true,
	}}
	r := &Resolver{FileSystem: fs}
	got := r.ResolveFiles("segmentation", LoaderConfig{})
	if got.ConfigFile != "./cmd/segmentation/config.yml" {
		t.Errorf("expected service config first, got %q", got.ConfigFile)
	}
	if got.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", got.EnvFile)
	}
}

func TestResolveFiles_Explicit(t *testing.T) {
	r := &Resolver{FileSystem: &fakeFS{}}
	got := r.ResolveFiles("segmentation", LoaderConfig{ConfigFile: "custom.yml", EnvFile: "custom.env"})
	if got.ConfigFile != "custom.yml" || got.EnvFile != "custom.env" {
		t.Errorf("unexpected resolution %+v", got)
	}
}

type testConfig struct {
	ServiceConfig `mapstructure:",squash"`
	GCP           struct {
		ProjectID string `mapstructure:"project_id"`
		Location  string `mapstructure:"location"`
	} `mapstructure:"gcp"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
name: segmentation
environment: staging
logging:
  level: debug
  format: json
gcp:
  project_id: file-project
  location: US
`)
	t.Setenv("SEGMENTATION_GCP_PROJECT_ID", "env-project")

	var cfg testConfig
	err := LoadConfig("segmentation", &cfg,
		WithConfigFile(path),
		WithFileSystem(&fakeFS{files: map[string]bool{path: true}}),
		WithEnvPrefix("SEGMENTATION"),
	)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "segmentation" || cfg.Environment != "staging" {
		t.Errorf("unexpected service fields %+v", cfg.ServiceConfig)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging %+v", cfg.Logging)
	}
	if cfg.GCP.ProjectID != "env-project" {
		t.Errorf("expected env override, got %q", cfg.GCP.ProjectID)
	}
	if cfg.GCP.Location != "US" {
		t.Errorf("expected location from file, got %q", cfg.GCP.Location)
	}
}

func TestLoadConfig_DefaultsOverriddenByEnv(t *testing.T) {
	t.Setenv("SEGMENTATION_GCP_LOCATION", "EU")

	var cfg testConfig
	err := LoadConfig("segmentation", &cfg,
		WithFileSystem(&fakeFS{}),
		WithEnvPrefix("SEGMENTATION"),
		WithDefaults(map[string]any{"name": "segmentation", "gcp.location": "US"}),
	)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "segmentation" {
		t.Errorf("expected default name, got %q", cfg.Name)
	}
	if cfg.GCP.Location != "EU" {
		t.Errorf("expected env to override default, got %q", cfg.GCP.Location)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("segmentation", &cfg, WithConfigFile("missing.yml"), WithFileSystem(&fakeFS{}))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadConfig_LoadsEnvFile(t *testing.T) {
	fs := &fakeFS{files: map[string]bool{"./.env": true}}
	var cfg testConfig
	if err := LoadConfig("segmentation", &cfg, WithFileSystem(fs)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(fs.loaded) != 1 || fs.loaded[0] != "./.env" {
		t.Errorf("expected .env to be loaded, got %v", fs.loaded)
	}
}

func TestServiceConfig_ApplyDefaultsAndValidate(t *testing.T) {
	cfg := ServiceConfig{Name: "segmentation"}
	cfg.ApplyDefaults()
	if cfg.Environment != "development" {
		t.Errorf("expected development, got %q", cfg.Environment)
	}
	if cfg.Tracing.ServiceName != "segmentation" {
		t.Errorf("expected tracing service name, got %q", cfg.Tracing.ServiceName)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := cfg
	bad.Environment = "qa"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown environment")
	}

	unnamed := ServiceConfig{}
	unnamed.ApplyDefaults()
	if err := unnamed.Validate(); err == nil {
		t.Error("expected error for missing name")
	}
}
