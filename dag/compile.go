package dag

import (
	"bytes"
	"fmt"

	"go.yaml.in/yaml/v3"
)

// Compile validates p and renders it as the YAML document an orchestrator
// consumes.
func Compile(p *Pipeline) ([]byte, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("dag: encoding %s: %w", p.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("dag: encoding %s: %w", p.Name, err)
	}
	return buf.Bytes(), nil
}

// Decode parses a compiled document and validates it. List defaults
// decoded as []any are normalized to []string.
func Decode(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("dag: parsing pipeline: %w", err)
	}
	for i, def := range p.Params {
		if def.Default == nil {
			continue
		}
		v, err := Coerce(def.Type, def.Default)
		if err != nil {
			return nil, fmt.Errorf("dag: param %q default: %w", def.Name, err)
		}
		p.Params[i].Default = v
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
