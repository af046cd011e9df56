// Package dag models pipelines as declarative, typed directed acyclic graphs
// and executes them.
//
// A Pipeline is a document: parameters, nodes, and the wiring from node
// inputs to parameters or to outputs of nodes declared strictly earlier.
// Documents serialize to YAML for an external orchestrator and can be read
// back with LoadPipeline. They never execute themselves.
//
// To execute a document locally, ResolvePipeline looks each node's component
// up in a Registry and builds a Graph; Engine runs the graph level by level,
// skipping every node downstream of a failure. Runner ties the two together
// and records a Run per invocation.
//
// Nodes exchange values through State. Port[T] is a typed key into State,
// and the input bindings of a NodeDef are built from ports so the declared
// type always matches the Go type written at run time.
package dag
