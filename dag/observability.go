package dag

import (
	"context"
	"time"

	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/observability"
)

// WithTracing wraps a Node with OpenTelemetry span creation.
// Each execution creates a span named "{prefix}.{nodeName}".
func WithTracing(node Node, prefix string) Node {
	return &tracingNode{inner: node, prefix: prefix}
}

type tracingNode struct {
	inner  Node
	prefix string
}

func (n *tracingNode) Name() string { return n.inner.Name() }

func (n *tracingNode) Run(ctx context.Context, state *State) (any, error) {
	spanName := n.prefix + "." + n.inner.Name()
	ctx, span := observability.StartSpan(ctx, spanName)
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrNode, n.inner.Name())

	result, err := n.inner.Run(ctx, state)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}

	return result, err
}

// WithMetrics wraps a Node with metric recording.
// Records execution count and duration per pipeline, and errors by code.
func WithMetrics(node Node, metrics *observability.Metrics, pipeline string) Node {
	return &metricsNode{inner: node, metrics: metrics, pipeline: pipeline}
}

type metricsNode struct {
	inner    Node
	metrics  *observability.Metrics
	pipeline string
}

func (n *metricsNode) Name() string { return n.inner.Name() }

func (n *metricsNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	result, err := n.inner.Run(ctx, state)
	duration := time.Since(start)

	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		n.metrics.RecordError(ctx, string(errors.CodeOf(err)), n.inner.Name())
	}
	n.metrics.RecordNode(ctx, n.pipeline, n.inner.Name(), status, duration)

	return result, err
}

// WithLogging wraps a Node with execution logging.
// Logs: node name, duration, and success/error status.
func WithLogging(node Node, log *logger.Logger) Node {
	return &loggingNode{inner: node, log: log}
}

type loggingNode struct {
	inner Node
	log   *logger.Logger
}

func (n *loggingNode) Name() string { return n.inner.Name() }

func (n *loggingNode) Run(ctx context.Context, state *State) (any, error) {
	log := n.log.WithContext(ctx)
	log.Debug("dag node started", logger.Fields("node", n.inner.Name()))

	start := time.Now()
	result, err := n.inner.Run(ctx, state)

	fields := logger.DurationFields(n.inner.Name(), time.Since(start))
	fields["node"] = n.inner.Name()

	if err != nil {
		log.WithError(err).Error("dag node failed", fields)
	} else {
		log.Info("dag node completed", fields)
	}

	return result, err
}
