package dag

import (
	"fmt"
	"strings"

	"github.com/kbukum/segmentation/errors"
)

// Validate checks the structural invariants of a pipeline document:
//   - parameter, node and per-node output names are unique and non-empty
//   - every input binds to a declared parameter or to an output of a node
//     declared strictly earlier, with the same declared type
//   - DependsOn only names strictly earlier nodes
//
// All problems are collected into a single INVALID_GRAPH error whose
// "problems" detail lists them in declaration order.
func Validate(p *Pipeline) error {
	if p == nil {
		return errors.InvalidGraph("", "pipeline is nil")
	}
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(p.Name) == "" {
		addf("pipeline name is required")
	}

	params := make(map[string]ParamDef, len(p.Params))
	for i, def := range p.Params {
		switch {
		case def.Name == "":
			addf("params[%d]: name is required", i)
			continue
		case params[def.Name].Name != "":
			addf("param %q declared more than once", def.Name)
			continue
		case !def.Type.IsScalar():
			addf("param %q: type %q cannot be a pipeline parameter", def.Name, def.Type)
		}
		params[def.Name] = def
	}

	// position of each node; a node may only reference lower positions
	position := make(map[string]int, len(p.Nodes))
	for i, n := range p.Nodes {
		if n.Name == "" {
			addf("nodes[%d]: name is required", i)
			continue
		}
		if n.Name == paramNamespace {
			addf("node name %q is reserved", n.Name)
		}
		if _, dup := position[n.Name]; dup {
			addf("node %q declared more than once", n.Name)
			continue
		}
		position[n.Name] = i
	}

	for i, n := range p.Nodes {
		if n.Name == "" {
			continue
		}
		if n.Component == "" {
			addf("node %q: component is required", n.Name)
		}

		seen := make(map[string]bool, len(n.Outputs))
		for _, out := range n.Outputs {
			if out.Name == "" {
				addf("node %q: output name is required", n.Name)
				continue
			}
			if seen[out.Name] {
				addf("node %q: output %q declared more than once", n.Name, out.Name)
			}
			seen[out.Name] = true
			if !out.Type.IsKnown() {
				addf("node %q: output %q has unknown type %q", n.Name, out.Name, out.Type)
			}
		}

		for _, name := range n.InputNames() {
			in := n.Inputs[name]
			if msg := checkInput(p, params, position, i, n.Name, in); msg != "" {
				addf("node %q: input %q: %s", n.Name, name, msg)
			}
		}

		for _, dep := range n.DependsOn {
			pos, ok := position[dep]
			switch {
			case dep == n.Name:
				addf("node %q: depends on itself", n.Name)
			case !ok:
				addf("node %q: depends on unknown node %q", n.Name, dep)
			case pos > i:
				addf("node %q: depends on %q, which is declared later", n.Name, dep)
			}
		}
	}

	if len(problems) > 0 {
		return errors.InvalidGraph(p.Name, strings.Join(problems, "; ")).
			WithDetail("problems", problems)
	}
	return nil
}

func checkInput(p *Pipeline, params map[string]ParamDef, position map[string]int, index int, node string, in Input) string {
	hasParam := in.Param != ""
	hasNode := in.Node != "" || in.Output != ""
	switch {
	case hasParam && hasNode:
		return "binds both a parameter and a node output"
	case !hasParam && !hasNode:
		return "is not bound"
	case !in.Type.IsKnown():
		return fmt.Sprintf("unknown type %q", in.Type)
	}

	if hasParam {
		def, ok := params[in.Param]
		if !ok {
			return fmt.Sprintf("references undeclared param %q", in.Param)
		}
		if def.Type != in.Type {
			return fmt.Sprintf("type %s does not match param %q of type %s", in.Type, in.Param, def.Type)
		}
		return ""
	}

	if in.Node == node {
		return "is wired to its own output"
	}
	pos, ok := position[in.Node]
	if !ok {
		return fmt.Sprintf("references unknown node %q", in.Node)
	}
	if pos > index {
		return fmt.Sprintf("references %s, which is declared later", in)
	}
	upstream := p.Nodes[pos]
	out, ok := upstream.Output(in.Output)
	if !ok {
		return fmt.Sprintf("node %q has no output %q", in.Node, in.Output)
	}
	if out.Type != in.Type {
		return fmt.Sprintf("type %s does not match %s of type %s", in.Type, in, out.Type)
	}
	return ""
}
