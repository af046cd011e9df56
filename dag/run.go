package dag

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/observability"
)

// Run records one execution of a pipeline.
type Run struct {
	ID        uuid.UUID
	Pipeline  string
	Arguments map[string]any
	// Outputs holds every node output written during the run, keyed
	// "{node}.{output}".
	Outputs  map[string]any
	Result   *Result
	Started  time.Time
	Finished time.Time
}

// Runner resolves pipelines against a component registry and executes them.
type Runner struct {
	Registry *Registry
	Engine   *Engine
	Logger   *logger.Logger
	// Tracing wraps every node in a span named "{pipeline}.{node}".
	Tracing bool
	// Metrics, when set, records node and pipeline counters.
	Metrics *observability.Metrics
}

// Run resolves arguments, builds the graph and executes it. The returned
// error is the first node failure, an invalid argument or graph, or a
// context error; the Run is returned whenever execution started.
func (r *Runner) Run(ctx context.Context, p *Pipeline, args map[string]any) (*Run, error) {
	resolved, err := ResolveArguments(p, args)
	if err != nil {
		return nil, err
	}
	g, err := ResolvePipeline(p, r.Registry)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.New(),
		Pipeline:  p.Name,
		Arguments: resolved,
		Started:   time.Now(),
	}

	ctx = logger.ContextWithRunID(ctx, run.ID.String())
	ctx = logger.ContextWithPipeline(ctx, p.Name)
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrPipeline, p.Name)
	observability.SetSpanAttribute(ctx, observability.AttrRunID, run.ID.String())

	log := r.logger().WithContext(ctx)
	r.decorate(g, p.Name, log)

	state := NewState()
	SeedState(state, resolved)

	log.Info("pipeline started", logger.Fields("nodes", len(g.Nodes)))

	engine := r.Engine
	if engine == nil {
		engine = &Engine{}
	}
	result, execErr := engine.ExecuteBatch(ctx, g, state)
	run.Result = result
	run.Outputs = nodeOutputs(state)
	run.Finished = time.Now()

	if execErr == nil && result != nil {
		execErr = result.Err()
	}

	status := StatusCompleted
	fields := logger.DurationFields(p.Name, run.Finished.Sub(run.Started))
	if execErr != nil {
		status = StatusFailed
		observability.SetSpanError(ctx, execErr)
		log.WithError(execErr).Error("pipeline failed", fields)
	} else {
		log.Info("pipeline completed", fields)
	}
	observability.SetSpanAttribute(ctx, observability.AttrStatus, status)
	if r.Metrics != nil {
		r.Metrics.RecordPipeline(ctx, p.Name, status, run.Finished.Sub(run.Started))
	}

	return run, execErr
}

// nodeOutputs returns the non-parameter entries of state.
func nodeOutputs(state *State) map[string]any {
	out := state.Snapshot()
	for key := range out {
		if strings.HasPrefix(key, paramNamespace+".") {
			delete(out, key)
		}
	}
	return out
}

func (r *Runner) decorate(g *Graph, pipeline string, log *logger.Logger) {
	for name, node := range g.Nodes {
		if r.Tracing {
			node = WithTracing(node, pipeline)
		}
		if r.Metrics != nil {
			node = WithMetrics(node, r.Metrics, pipeline)
		}
		g.Nodes[name] = WithLogging(node, log)
	}
}

func (r *Runner) logger() *logger.Logger {
	if r.Logger == nil {
		return logger.NewNop()
	}
	return r.Logger
}
