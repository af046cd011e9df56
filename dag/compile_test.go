package dag

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/kbukum/segmentation/errors"
)

func TestCompileDecodeRoundTrip(t *testing.T) {
	p := twoStep()
	p.Labels = map[string]string{"compiler": "segmentation"}
	p.Params[2].Default = []string{"user_id", "ts"}

	data, err := Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(string(data), "name: two-step") {
		t.Fatalf("unexpected document:\n%s", data)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, p) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, p)
	}
}

func TestCompile_RejectsInvalid(t *testing.T) {
	p := twoStep()
	p.Nodes[1].Inputs["model"] = Input{Type: TypeModel, Node: "ghost", Output: "model"}
	if _, err := Compile(p); apperrors.CodeOf(err) != apperrors.ErrCodeInvalidGraph {
		t.Fatalf("expected INVALID_GRAPH, got %v", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte("name: [")); err == nil {
		t.Fatal("expected parse error")
	}
	doc := "name: p\nparams:\n  - name: k\n    type: int\n    default: many\nnodes: []\n"
	if _, err := Decode([]byte(doc)); err == nil {
		t.Fatal("expected default coercion error")
	}
	doc = "name: p\nnodes:\n  - name: a\n"
	if _, err := Decode([]byte(doc)); apperrors.CodeOf(err) != apperrors.ErrCodeInvalidGraph {
		t.Fatalf("expected INVALID_GRAPH for missing component, got %v", err)
	}
}

func TestWritePipelineAndLoad(t *testing.T) {
	dir := t.TempDir()
	path, err := WritePipeline(twoStep(), dir)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "two-step.yaml" {
		t.Fatalf("unexpected path %s", path)
	}

	p, err := NewFilePipelineLoader(t.TempDir(), dir).Load("two-step")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Nodes) != 2 || p.Nodes[1].Name != "evaluate" {
		t.Fatalf("unexpected pipeline %+v", p)
	}

	p, err = LoadPipeline("two-step", filepath.Join(dir, "nope.yaml"), path)
	if err != nil || p.Name != "two-step" {
		t.Fatalf("LoadPipeline: %v", err)
	}
}

func TestFilePipelineLoader_Subdirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := WritePipeline(twoStep(), filepath.Join(dir, "training")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFilePipelineLoader(dir).Load("two-step"); err != nil {
		t.Fatalf("expected pipeline found in subdirectory: %v", err)
	}
}

func TestFilePipelineLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewFilePipelineLoader(dir).Load("missing"); err == nil {
		t.Fatal("expected not found error")
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: broken\nnodes:\n  - name: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFilePipelineLoader(dir).Load("broken"); err == nil {
		t.Fatal("expected invalid file to be reported")
	}
	if _, err := LoadPipeline("x", filepath.Join(dir, "nope.yaml")); err == nil {
		t.Fatal("expected not found error")
	}
}
