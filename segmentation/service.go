package segmentation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/segmentation/activation"
	"github.com/kbukum/segmentation/bq"
	"github.com/kbukum/segmentation/component"
	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/observability"
	"github.com/kbukum/segmentation/version"
)

// Service runs the built-in pipelines locally. It owns the BigQuery client
// and the activation publisher and starts them with itself. A Service is a
// component, so an application can manage it like any other.
type Service struct {
	cfg        Config
	log        *logger.Logger
	lifecycle  *component.Registry
	components Components
	runner     *dag.Runner
	shutdown   []func(context.Context) error
}

var (
	_ component.Component   = (*Service)(nil)
	_ component.Describable = (*Service)(nil)
)

// NewService creates the BigQuery client and the configured publisher.
// Nothing connects until Start.
func NewService(cfg Config, log *logger.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.BigQuery.Validate(); err != nil {
		return nil, err
	}

	warehouse := bq.NewClient(cfg.BigQuery, log)
	publisher, err := activation.NewPublisher(cfg.Activation, log)
	if err != nil {
		return nil, err
	}
	comps := Components{
		Warehouse:    warehouse,
		Publisher:    publisher,
		PublishRetry: cfg.Activation.Retry,
		Logger:       log,
	}
	return NewServiceWith(cfg, log, comps, warehouse, publisher)
}

// NewServiceWith creates a Service over the given components. lifecycle
// lists what Start and Stop manage, in start order.
func NewServiceWith(cfg Config, log *logger.Logger, comps Components, lifecycle ...component.Component) (*Service, error) {
	cfg.ApplyDefaults()
	if comps.Logger == nil {
		comps.Logger = log
	}
	reg := component.NewRegistry()
	for _, c := range lifecycle {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return &Service{
		cfg:        cfg,
		log:        log.WithComponent("segmentation"),
		lifecycle:  reg,
		components: comps,
		runner: &dag.Runner{
			Registry: comps.Registry(),
			Engine:   &dag.Engine{MaxParallel: cfg.Engine.MaxParallel},
			Logger:   log,
		},
	}, nil
}

// Start initializes telemetry when enabled and starts every component.
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, s.cfg.Tracing)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		s.shutdown = append(s.shutdown, tp.Shutdown)
		s.runner.Tracing = true
	}
	if s.cfg.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, s.cfg.Metrics)
		if err != nil {
			return fmt.Errorf("init meter: %w", err)
		}
		s.shutdown = append(s.shutdown, mp.Shutdown)
		metrics, err := observability.NewMetrics(mp.Meter(ServiceName))
		if err != nil {
			return err
		}
		s.runner.Metrics = metrics
	}
	return s.lifecycle.StartAll(ctx)
}

// Stop stops every component, then flushes telemetry.
func (s *Service) Stop(ctx context.Context) error {
	err := s.lifecycle.StopAll(ctx)
	for i := len(s.shutdown) - 1; i >= 0; i-- {
		if serr := s.shutdown[i](ctx); serr != nil {
			s.log.Warn("telemetry shutdown failed", logger.ErrorFields("shutdown", serr))
		}
	}
	s.shutdown = nil
	return err
}

// Report aggregates the health of every managed component.
func (s *Service) Report(ctx context.Context) *observability.ServiceHealth {
	return s.lifecycle.ServiceHealth(ctx, s.cfg.Name, version.GetShortVersion())
}

// Backends lists the managed components.
func (s *Service) Backends() []component.Description {
	return s.lifecycle.Describe()
}

// Name implements component.Component.
func (s *Service) Name() string { return s.cfg.Name }

// Health implements component.Component. The service is as healthy as its
// least healthy backend.
func (s *Service) Health(ctx context.Context) component.Health {
	h := component.Health{Name: s.cfg.Name, Status: component.StatusHealthy}
	var down []string
	for _, c := range s.lifecycle.HealthAll(ctx) {
		switch c.Status {
		case component.StatusHealthy:
		case component.StatusDegraded:
			if h.Status == component.StatusHealthy {
				h.Status = component.StatusDegraded
			}
			down = append(down, c.Name)
		default:
			h.Status = component.StatusUnhealthy
			down = append(down, c.Name)
		}
	}
	if len(down) > 0 {
		h.Message = "not healthy: " + strings.Join(down, ", ")
	}
	return h
}

// Describe implements component.Describable.
func (s *Service) Describe() component.Description {
	return component.Description{
		Name:    s.cfg.Name,
		Type:    "service",
		Details: fmt.Sprintf("project=%s transport=%s", s.cfg.GCP.ProjectID, s.cfg.Activation.Transport),
	}
}

// Run executes the named built-in pipeline with its configured parameters.
func (s *Service) Run(ctx context.Context, pipeline string) (*dag.Run, error) {
	params, err := s.cfg.Params(pipeline)
	if err != nil {
		return nil, err
	}
	return s.RunWith(ctx, pipeline, params)
}

// RunWith executes the named built-in pipeline with params.
func (s *Service) RunWith(ctx context.Context, pipeline string, params Params) (*dag.Run, error) {
	p, err := Lookup(pipeline)
	if err != nil {
		return nil, err
	}
	return Execute(ctx, s.runner, p, params)
}

// Execute validates params and runs p with them.
func Execute(ctx context.Context, runner *dag.Runner, p *dag.Pipeline, params Params) (*dag.Run, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	args, err := params.Arguments()
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, p, args)
}
