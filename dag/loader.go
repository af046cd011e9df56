package dag

import (
	"fmt"
	"os"
	"path/filepath"
)

// PipelineLoader loads pipeline definitions by name.
type PipelineLoader interface {
	Load(name string) (*Pipeline, error)
}

// FilePipelineLoader loads compiled pipelines from YAML files on disk.
type FilePipelineLoader struct {
	dirs []string
}

// NewFilePipelineLoader creates a loader that searches the given directories for pipeline YAML files.
func NewFilePipelineLoader(dirs ...string) PipelineLoader {
	return &FilePipelineLoader{dirs: dirs}
}

// Load searches for {name}.yaml and {name}.yml in each directory and its
// immediate subdirectories. A file that exists but fails to parse or
// validate is reported rather than skipped.
func (l *FilePipelineLoader) Load(name string) (*Pipeline, error) {
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			candidates := []string{filepath.Join(dir, name+ext)}
			matches, _ := filepath.Glob(filepath.Join(dir, "*", name+ext))
			candidates = append(candidates, matches...)

			for _, path := range candidates {
				if _, err := os.Stat(path); err != nil {
					continue
				}
				return loadPipelineFile(path)
			}
		}
	}
	return nil, fmt.Errorf("dag: pipeline %q not found in %v", name, l.dirs)
}

func loadPipelineFile(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("dag: loading %s: %w", path, err)
	}
	return p, nil
}

// LoadPipeline loads a pipeline from explicit file paths.
// It tries each path until one exists.
func LoadPipeline(name string, paths ...string) (*Pipeline, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return loadPipelineFile(path)
	}
	return nil, fmt.Errorf("dag: pipeline %q not found in provided paths", name)
}

// WritePipeline compiles p into dir/{p.Name}.yaml and returns the path.
func WritePipeline(p *Pipeline, dir string) (string, error) {
	data, err := Compile(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("dag: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, p.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("dag: writing %s: %w", path, err)
	}
	return path, nil
}
