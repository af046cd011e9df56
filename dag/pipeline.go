package dag

import (
	"fmt"
	"sort"
)

// ValueType is the declared type of a parameter, input or output.
type ValueType string

// Scalar and list value types.
const (
	TypeString ValueType = "string"
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeBool   ValueType = "bool"
	TypeList   ValueType = "list"
)

// Artifact value types. Artifacts are produced by nodes and cannot be
// supplied as pipeline parameters.
const (
	TypeModel   ValueType = "model"
	TypeTable   ValueType = "table"
	TypeMetrics ValueType = "metrics"
	TypeReceipt ValueType = "receipt"
)

// IsScalar reports whether values of t may be passed as pipeline parameters.
func (t ValueType) IsScalar() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeList:
		return true
	}
	return false
}

// IsKnown reports whether t is one of the declared value types.
func (t ValueType) IsKnown() bool {
	switch t {
	case TypeModel, TypeTable, TypeMetrics, TypeReceipt:
		return true
	}
	return t.IsScalar()
}

// Pipeline is a named, parameterized DAG definition.
type Pipeline struct {
	// Name is the pipeline identifier, e.g. "prediction-pipeline".
	Name string `yaml:"name"`
	// Description is free text carried into the compiled document.
	Description string `yaml:"description,omitempty"`
	// Labels annotate the compiled document (compiler version and so on).
	Labels map[string]string `yaml:"labels,omitempty"`
	// Params are supplied per invocation.
	Params []ParamDef `yaml:"params"`
	// Nodes are declared in order; inputs may only reference earlier nodes.
	Nodes []NodeDef `yaml:"nodes"`
}

// ParamDef declares a pipeline parameter.
type ParamDef struct {
	Name        string    `yaml:"name"`
	Type        ValueType `yaml:"type"`
	Optional    bool      `yaml:"optional,omitempty"`
	Default     any       `yaml:"default,omitempty"`
	Description string    `yaml:"description,omitempty"`
}

// NodeDef declares one operation node.
type NodeDef struct {
	// Name is unique within the pipeline.
	Name string `yaml:"name"`
	// Component is the registry key of the operation implementing the node.
	Component string `yaml:"component"`
	// DisplayName overrides Name in orchestrator UIs.
	DisplayName string `yaml:"display_name,omitempty"`
	// Inputs maps input names to their bindings.
	Inputs map[string]Input `yaml:"inputs,omitempty"`
	// Outputs declares the node's named outputs.
	Outputs []OutputDef `yaml:"outputs,omitempty"`
	// DependsOn adds ordering edges that carry no data.
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// Input binds a node input to a pipeline parameter or an upstream output.
// Exactly one of Param or Node/Output is set.
type Input struct {
	Type   ValueType `yaml:"type"`
	Param  string    `yaml:"param,omitempty"`
	Node   string    `yaml:"node,omitempty"`
	Output string    `yaml:"output,omitempty"`
}

// OutputDef declares a named node output.
type OutputDef struct {
	Name string    `yaml:"name"`
	Type ValueType `yaml:"type"`
}

// IsParam reports whether the input is bound to a pipeline parameter.
func (in Input) IsParam() bool { return in.Param != "" }

// Key returns the State key the bound value lives under.
func (in Input) Key() string {
	if in.IsParam() {
		return ParamKey(in.Param)
	}
	return OutputKey(in.Node, in.Output)
}

// String renders the binding for error messages.
func (in Input) String() string {
	if in.IsParam() {
		return "param " + in.Param
	}
	return fmt.Sprintf("%s.%s", in.Node, in.Output)
}

// Param returns the named parameter declaration.
func (p *Pipeline) Param(name string) (ParamDef, bool) {
	for _, def := range p.Params {
		if def.Name == name {
			return def, true
		}
	}
	return ParamDef{}, false
}

// Node returns the named node declaration.
func (p *Pipeline) Node(name string) (NodeDef, bool) {
	for _, def := range p.Nodes {
		if def.Name == name {
			return def, true
		}
	}
	return NodeDef{}, false
}

// Output returns the named output declaration.
func (n NodeDef) Output(name string) (OutputDef, bool) {
	for _, out := range n.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return OutputDef{}, false
}

// Title returns DisplayName, falling back to Name.
func (n NodeDef) Title() string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	return n.Name
}

// InputNames returns the node's input names in sorted order.
func (n NodeDef) InputNames() []string {
	names := make([]string, 0, len(n.Inputs))
	for name := range n.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Upstream returns the distinct names of nodes this node depends on, through
// output bindings or DependsOn, in sorted order.
func (n NodeDef) Upstream() []string {
	seen := make(map[string]bool)
	for _, in := range n.Inputs {
		if !in.IsParam() && in.Node != "" {
			seen[in.Node] = true
		}
	}
	for _, dep := range n.DependsOn {
		seen[dep] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy. Parameter defaults are copied by value; list
// defaults are copied element-wise.
func (p *Pipeline) Clone() *Pipeline {
	c := &Pipeline{
		Name:        p.Name,
		Description: p.Description,
		Params:      make([]ParamDef, len(p.Params)),
		Nodes:       make([]NodeDef, len(p.Nodes)),
	}
	if p.Labels != nil {
		c.Labels = make(map[string]string, len(p.Labels))
		for k, v := range p.Labels {
			c.Labels[k] = v
		}
	}
	for i, def := range p.Params {
		if list, ok := def.Default.([]string); ok {
			def.Default = append([]string(nil), list...)
		}
		c.Params[i] = def
	}
	for i, n := range p.Nodes {
		cn := n
		if n.Inputs != nil {
			cn.Inputs = make(map[string]Input, len(n.Inputs))
			for k, v := range n.Inputs {
				cn.Inputs[k] = v
			}
		}
		cn.Outputs = append([]OutputDef(nil), n.Outputs...)
		cn.DependsOn = append([]string(nil), n.DependsOn...)
		c.Nodes[i] = cn
	}
	return c
}
