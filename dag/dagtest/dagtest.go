// Package dagtest provides test doubles for the dag package: configurable
// mock nodes, a fluent graph builder and an execution-order recorder.
package dagtest

import (
	"context"
	"sync"

	"github.com/kbukum/segmentation/dag"
)

// MockNode is a configurable test node for DAG testing.
// It records calls and returns a preset output or error.
type MockNode struct {
	name   string
	output any
	err    error
	fn     func(ctx context.Context, state *dag.State) (any, error)
	rec    *Recorder

	mu    sync.Mutex
	calls int
}

var _ dag.Node = (*MockNode)(nil)

// NewMockNode creates a mock node that returns the given output.
// If err is non-nil, the node will fail with that error.
func NewMockNode(name string, output any, err error) *MockNode {
	return &MockNode{name: name, output: output, err: err}
}

// NewMockNodeFunc creates a mock node backed by a custom function.
func NewMockNodeFunc(name string, fn func(ctx context.Context, state *dag.State) (any, error)) *MockNode {
	return &MockNode{name: name, fn: fn}
}

// RecordTo makes the node append its name to rec when it runs.
func (n *MockNode) RecordTo(rec *Recorder) *MockNode {
	n.rec = rec
	return n
}

func (n *MockNode) Name() string { return n.name }

func (n *MockNode) Run(ctx context.Context, state *dag.State) (any, error) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()

	if n.rec != nil {
		n.rec.Record(n.name)
	}
	if n.fn != nil {
		return n.fn(ctx, state)
	}
	return n.output, n.err
}

// Calls returns how many times Run was invoked.
func (n *MockNode) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// Reset clears the call counter.
func (n *MockNode) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = 0
}

// GraphBuilder provides a fluent API for constructing test graphs.
type GraphBuilder struct {
	graph *dag.Graph
}

// NewGraphBuilder creates a new GraphBuilder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{graph: &dag.Graph{Nodes: make(map[string]dag.Node)}}
}

// AddNode adds a node to the graph.
func (b *GraphBuilder) AddNode(node dag.Node) *GraphBuilder {
	b.graph.Nodes[node.Name()] = node
	return b
}

// AddEdge adds a dependency edge (to depends on from).
func (b *GraphBuilder) AddEdge(from, to string) *GraphBuilder {
	b.graph.AddEdge(from, to)
	return b
}

// Build returns the constructed Graph.
func (b *GraphBuilder) Build() *dag.Graph {
	return b.graph
}

// Recorder collects node names in the order they ran.
type Recorder struct {
	mu    sync.Mutex
	order []string
}

// Record appends name.
func (r *Recorder) Record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

// Order returns a copy of the recorded names.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Ran reports whether name was recorded.
func (r *Recorder) Ran(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.order {
		if n == name {
			return true
		}
	}
	return false
}

// Before reports whether a was recorded before b. Both must have run.
func (r *Recorder) Before(a, b string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ia, ib := -1, -1
	for i, n := range r.order {
		if n == a && ia < 0 {
			ia = i
		}
		if n == b && ib < 0 {
			ib = i
		}
	}
	return ia >= 0 && ib >= 0 && ia < ib
}

// Component returns a ComponentSpec whose factory builds a MockNode that
// writes output to each declared output of the node and records to rec.
func Component(name string, inputs []dag.InputSpec, outputs []dag.OutputDef, output func(def dag.NodeDef, out dag.OutputDef) any, rec *Recorder) dag.ComponentSpec {
	return dag.ComponentSpec{
		Name:    name,
		Inputs:  inputs,
		Outputs: outputs,
		Factory: func(def dag.NodeDef) (dag.Node, error) {
			return NewMockNodeFunc(def.Name, func(ctx context.Context, state *dag.State) (any, error) {
				var last any
				for _, out := range def.Outputs {
					v := output(def, out)
					if err, ok := v.(error); ok {
						return nil, err
					}
					state.Set(dag.OutputKey(def.Name, out.Name), v)
					last = v
				}
				return last, nil
			}).RecordTo(rec), nil
		},
	}
}
