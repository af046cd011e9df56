package dag

import (
	"fmt"
	"strings"

	"github.com/kbukum/segmentation/errors"
)

// ResolvePipeline converts a Pipeline definition into an executable Graph.
// The document is validated first; each node is then checked against its
// component contract and built by the component factory. Edges come from
// output bindings and DependsOn.
func ResolvePipeline(p *Pipeline, registry *Registry) (*Graph, error) {
	return resolve(p, registry, true)
}

// CheckPipeline validates p and checks every node against its component
// contract without building nodes, so no backend is needed.
func CheckPipeline(p *Pipeline, registry *Registry) error {
	_, err := resolve(p, registry, false)
	return err
}

func resolve(p *Pipeline, registry *Registry, build bool) (*Graph, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	g := &Graph{Nodes: make(map[string]Node, len(p.Nodes))}
	var problems []string

	for _, def := range p.Nodes {
		spec, ok := registry.Get(def.Component)
		if !ok {
			problems = append(problems, fmt.Sprintf("node %q: component %q not found in registry", def.Name, def.Component))
			continue
		}
		if issues := spec.Check(def); len(issues) > 0 {
			for _, issue := range issues {
				problems = append(problems, fmt.Sprintf("node %q: %s", def.Name, issue))
			}
			continue
		}
		if !build {
			continue
		}
		node, err := spec.Factory(def)
		if err != nil {
			problems = append(problems, fmt.Sprintf("node %q: %v", def.Name, err))
			continue
		}
		g.Nodes[def.Name] = node
		for _, up := range def.Upstream() {
			g.AddEdge(up, def.Name)
		}
	}

	if len(problems) > 0 {
		return nil, errors.InvalidGraph(p.Name, strings.Join(problems, "; ")).
			WithDetail("problems", problems)
	}
	return g, nil
}

// PlanLevels validates p and groups its node names by dependency level, the
// order a Runner would execute them in. No component is needed.
func PlanLevels(p *Pipeline) ([][]string, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	g := &Graph{Nodes: make(map[string]Node, len(p.Nodes))}
	for _, def := range p.Nodes {
		g.Nodes[def.Name] = nil
		for _, up := range def.Upstream() {
			g.AddEdge(up, def.Name)
		}
	}
	return BuildLevels(g)
}
