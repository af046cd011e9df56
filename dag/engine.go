package dag

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/segmentation/errors"
)

// Engine executes a graph in dependency order.
type Engine struct {
	// MaxParallel limits concurrent nodes per level (0 = unlimited).
	MaxParallel int
}

// ExecuteBatch runs all nodes in dependency order, one-shot.
//
// A node whose upstream failed or was skipped is not run; it is recorded as
// skipped with an UPSTREAM_FAILED error naming the first such dependency.
// Node failures are reported through Result.Err, not the returned error,
// which is reserved for an invalid graph or context cancellation. On
// cancellation the partial result is returned alongside ctx.Err(), with
// every node that did not start recorded as skipped.
func (e *Engine) ExecuteBatch(ctx context.Context, g *Graph, state *State) (*Result, error) {
	start := time.Now()

	levels, err := BuildLevels(g)
	if err != nil {
		return nil, errors.InvalidGraph("", err.Error()).WithCause(err)
	}

	result := newResult(len(g.Nodes))
	for i, level := range levels {
		if err := ctx.Err(); err != nil {
			for _, rest := range levels[i:] {
				for _, name := range rest {
					result.record(NodeResult{Name: name, Status: StatusSkipped, Error: err})
				}
			}
			result.Duration = time.Since(start)
			return result, err
		}

		var toRun []string
		for _, name := range level {
			if upstream, blocked := blockedBy(g, result, name); blocked {
				result.record(NodeResult{
					Name:   name,
					Status: StatusSkipped,
					Error:  errors.UpstreamFailed(name, upstream),
				})
				continue
			}
			toRun = append(toRun, name)
		}

		if len(toRun) > 0 {
			e.executeLevel(ctx, g, state, toRun, result)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// blockedBy returns the first dependency of name that did not complete.
func blockedBy(g *Graph, result *Result, name string) (string, bool) {
	for _, dep := range g.Dependencies(name) {
		if nr, ok := result.NodeResults[dep]; ok && nr.Status != StatusCompleted {
			return dep, true
		}
	}
	return "", false
}

func (e *Engine) executeLevel(ctx context.Context, g *Graph, state *State, names []string, result *Result) {
	var wg sync.WaitGroup
	results := make([]NodeResult, len(names))
	sem := make(chan struct{}, e.concurrency(len(names)))

	for i, name := range names {
		wg.Add(1)
		go func(i int, nodeName string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = e.executeNode(ctx, g.Nodes[nodeName], state)
		}(i, name)
	}

	wg.Wait()

	// record in level order so Result.Order is deterministic
	sort.SliceStable(results, func(a, b int) bool { return results[a].Name < results[b].Name })
	for _, nr := range results {
		result.record(nr)
	}
}

func (e *Engine) executeNode(ctx context.Context, node Node, state *State) NodeResult {
	start := time.Now()
	output, err := node.Run(ctx, state)
	duration := time.Since(start)

	if err != nil {
		return NodeResult{
			Name:     node.Name(),
			Status:   StatusFailed,
			Duration: duration,
			Error:    err,
		}
	}

	return NodeResult{
		Name:     node.Name(),
		Status:   StatusCompleted,
		Duration: duration,
		Output:   output,
	}
}

func (e *Engine) concurrency(levelSize int) int {
	if e.MaxParallel <= 0 || e.MaxParallel > levelSize {
		return levelSize
	}
	return e.MaxParallel
}
