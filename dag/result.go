package dag

import "time"

// Node statuses recorded in a NodeResult.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Result holds the outcome of a graph execution.
type Result struct {
	NodeResults map[string]NodeResult
	// Order lists nodes in the order their results were recorded.
	Order []string
	// Total is the number of nodes in the executed graph.
	Total    int
	Duration time.Duration
}

// NodeResult holds the outcome of a single node execution.
type NodeResult struct {
	Name     string
	Status   string // "completed" | "skipped" | "failed"
	Duration time.Duration
	Output   any
	Error    error
}

func newResult(total int) *Result {
	return &Result{NodeResults: make(map[string]NodeResult), Total: total}
}

func (r *Result) record(nr NodeResult) {
	r.NodeResults[nr.Name] = nr
	r.Order = append(r.Order, nr.Name)
}

// Err returns the error of the first failed node, or nil if none failed.
// Skipped nodes do not count; their cause is the failure upstream.
func (r *Result) Err() error {
	for _, name := range r.Order {
		if nr := r.NodeResults[name]; nr.Status == StatusFailed {
			return nr.Error
		}
	}
	return nil
}

// Succeeded reports whether every node of the graph completed.
func (r *Result) Succeeded() bool {
	if len(r.NodeResults) < r.Total {
		return false
	}
	for _, nr := range r.NodeResults {
		if nr.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Completed returns the names of completed nodes in execution order.
func (r *Result) Completed() []string {
	var out []string
	for _, name := range r.Order {
		if r.NodeResults[name].Status == StatusCompleted {
			out = append(out, name)
		}
	}
	return out
}
