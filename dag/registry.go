package dag

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds the executable Node for a declared NodeDef.
type Factory func(def NodeDef) (Node, error)

// InputSpec declares an input a component accepts.
type InputSpec struct {
	Name     string
	Type     ValueType
	Optional bool
}

// ComponentSpec describes a reusable operation: the inputs it accepts, the
// outputs it produces, and how to build a Node for a declaration of it.
type ComponentSpec struct {
	Name    string
	Inputs  []InputSpec
	Outputs []OutputDef
	Factory Factory
}

// Registry provides named component lookup for resolving documents.
type Registry struct {
	mu         sync.RWMutex
	components map[string]ComponentSpec
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{components: make(map[string]ComponentSpec)}
}

// Register adds a component. Registering the same name twice is an error.
func (r *Registry) Register(spec ComponentSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("dag: component name is required")
	}
	if spec.Factory == nil {
		return fmt.Errorf("dag: component %q has no factory", spec.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[spec.Name]; exists {
		return fmt.Errorf("dag: component %q already registered", spec.Name)
	}
	r.components[spec.Name] = spec
	return nil
}

// MustRegister is Register that panics on error, for static wiring.
func (r *Registry) MustRegister(spec ComponentSpec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Get retrieves a component by name.
func (r *Registry) Get(name string) (ComponentSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.components[name]
	return spec, ok
}

// List returns sorted names of all registered components.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check reports how def deviates from the component contract: unknown or
// mistyped inputs, missing required inputs, and undeclared outputs.
func (spec ComponentSpec) Check(def NodeDef) []string {
	var problems []string
	accepted := make(map[string]InputSpec, len(spec.Inputs))
	for _, in := range spec.Inputs {
		accepted[in.Name] = in
		bound, ok := def.Inputs[in.Name]
		if !ok {
			if !in.Optional {
				problems = append(problems, fmt.Sprintf("required input %q is not bound", in.Name))
			}
			continue
		}
		if bound.Type != in.Type {
			problems = append(problems, fmt.Sprintf("input %q must be %s, got %s", in.Name, in.Type, bound.Type))
		}
	}
	for _, name := range def.InputNames() {
		if _, ok := accepted[name]; !ok {
			problems = append(problems, fmt.Sprintf("component %s has no input %q", spec.Name, name))
		}
	}
	for _, out := range spec.Outputs {
		declared, ok := def.Output(out.Name)
		if !ok {
			problems = append(problems, fmt.Sprintf("output %q is not declared", out.Name))
			continue
		}
		if declared.Type != out.Type {
			problems = append(problems, fmt.Sprintf("output %q must be %s, got %s", out.Name, out.Type, declared.Type))
		}
	}
	return problems
}
