package dag

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// paramNamespace prefixes parameter keys in State. No node may use it as a name.
const paramNamespace = "params"

// ParamKey returns the State key of a pipeline parameter.
func ParamKey(name string) string { return paramNamespace + "." + name }

// OutputKey returns the State key of a node output.
func OutputKey(node, output string) string { return node + "." + output }

// State is a thread-safe key-value store for passing data between nodes.
type State struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewState creates a new empty State.
func NewState() *State {
	return &State{data: make(map[string]any)}
}

// Get retrieves a value by key. Returns false if the key does not exist.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores a value by key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Snapshot returns a copy of all values.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Artifact is implemented by values that travel between nodes as artifacts
// rather than scalars.
type Artifact interface {
	ArtifactType() ValueType
}

// Port is a typed accessor for State. Ports also build the Input bindings
// and OutputDefs of a NodeDef, so declared and runtime types cannot drift.
type Port[T any] struct {
	Key string
}

// Param returns the port of a pipeline parameter.
func Param[T any](name string) Port[T] {
	return Port[T]{Key: ParamKey(name)}
}

// Output returns the port of a node output.
func Output[T any](node, output string) Port[T] {
	return Port[T]{Key: OutputKey(node, output)}
}

// Type returns the value type carried by the port.
func (p Port[T]) Type() ValueType { return TypeOf[T]() }

// Input returns the binding that wires a node input to this port.
func (p Port[T]) Input() Input {
	prefix, rest, _ := strings.Cut(p.Key, ".")
	if prefix == paramNamespace {
		return Input{Type: p.Type(), Param: rest}
	}
	return Input{Type: p.Type(), Node: prefix, Output: rest}
}

// Def returns the output declaration for a port built with Output.
func (p Port[T]) Def() OutputDef {
	_, name, _ := strings.Cut(p.Key, ".")
	return OutputDef{Name: name, Type: p.Type()}
}

// ParamDef returns the parameter declaration for a port built with Param.
func (p Port[T]) ParamDef(optional bool) ParamDef {
	_, name, _ := strings.Cut(p.Key, ".")
	return ParamDef{Name: name, Type: p.Type(), Optional: optional}
}

var artifactType = reflect.TypeOf((*Artifact)(nil)).Elem()

// TypeOf derives the value type of T. Artifacts report their own type;
// string, integer, float, bool and []string map to the scalar types.
// Anything else panics, since it cannot be declared in a document.
func TypeOf[T any]() ValueType {
	var zero T
	if a, ok := any(zero).(Artifact); ok {
		return a.ArtifactType()
	}
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if reflect.PointerTo(rt).Implements(artifactType) {
		return reflect.New(rt).Interface().(Artifact).ArtifactType()
	}
	switch rt.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Int, reflect.Int32, reflect.Int64:
		return TypeInt
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Bool:
		return TypeBool
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.String {
			return TypeList
		}
	}
	panic(fmt.Sprintf("dag: type %s has no pipeline value type", rt))
}

// Read retrieves a typed value from state using a Port.
// Returns an error if the key is missing or the type doesn't match.
func Read[T any](state *State, port Port[T]) (T, error) {
	var zero T
	raw, ok := state.Get(port.Key)
	if !ok {
		return zero, fmt.Errorf("dag: state key %q not found", port.Key)
	}
	val, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("dag: state key %q: expected %T, got %T", port.Key, zero, raw)
	}
	return val, nil
}

// Write stores a typed value into state using a Port.
func Write[T any](state *State, port Port[T], value T) {
	state.Set(port.Key, value)
}

// ReadInput reads the value bound to a named input of def.
func ReadInput[T any](state *State, def NodeDef, name string) (T, error) {
	var zero T
	in, ok := def.Inputs[name]
	if !ok {
		return zero, fmt.Errorf("dag: node %q has no input %q", def.Name, name)
	}
	return Read(state, Port[T]{Key: in.Key()})
}

// ReadOptionalInput is ReadInput that yields the zero value when the input
// is unbound or its parameter was omitted.
func ReadOptionalInput[T any](state *State, def NodeDef, name string) (T, error) {
	var zero T
	in, ok := def.Inputs[name]
	if !ok {
		return zero, nil
	}
	if _, present := state.Get(in.Key()); !present {
		return zero, nil
	}
	return Read(state, Port[T]{Key: in.Key()})
}
