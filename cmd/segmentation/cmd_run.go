package main

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/kbukum/segmentation/bootstrap"
	"github.com/kbukum/segmentation/component"
	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/segmentation"
)

var runFlags struct {
	set      map[string]string
	timeout  time.Duration
	shutdown time.Duration
	quiet    bool
}

var runCmd = &cobra.Command{
	Use:   "run <pipeline>",
	Short: "Run a pipeline locally against BigQuery",
	Long: "run executes the named pipeline with its configured parameters, starting the\n" +
		"BigQuery client and the activation publisher first. The run record is printed\n" +
		"as YAML; a failed node makes the command fail with its error.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: segmentation.Names(),
	RunE:      runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringToStringVar(&runFlags.set, "set", nil, "override a pipeline parameter (name=value)")
	f.DurationVar(&runFlags.timeout, "timeout", 0, "abort the run after this long (0 = no limit)")
	f.DurationVar(&runFlags.shutdown, "shutdown-timeout", 15*time.Second, "how long to wait for backends to close")
	f.BoolVarP(&runFlags.quiet, "quiet", "q", false, "do not print the startup summary")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params, err := configuredParams(cfg, name, runFlags.set)
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}

	log := logger.GetGlobalLogger()
	svc, err := segmentation.NewService(*cfg, log)
	if err != nil {
		return err
	}
	app, err := bootstrap.NewApp(cfg,
		bootstrap.WithLogger(log),
		bootstrap.WithSummaryOutput(cmd.ErrOrStderr()),
		bootstrap.WithQuiet(runFlags.quiet),
		bootstrap.WithGracefulTimeout(runFlags.shutdown),
	)
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(svc); err != nil {
		return err
	}
	trackBackends(app.Summary, svc.Backends())
	app.OnStart(requireHealthy(svc))

	var run *dag.Run
	err = app.RunTask(cmd.Context(), func(ctx context.Context) error {
		if runFlags.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runFlags.timeout)
			defer cancel()
		}
		var runErr error
		run, runErr = svc.RunWith(ctx, name, params)
		return runErr
	})
	if run != nil {
		if perr := printRun(cmd.OutOrStdout(), run); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func trackBackends(s *bootstrap.Summary, backends []component.Description) {
	for _, d := range backends {
		s.TrackInfrastructure(d.Name, d.Type, "active", d.Details, true)
	}
}

// requireHealthy refuses to start a run while a backend is unhealthy.
func requireHealthy(c component.Component) bootstrap.Hook {
	return func(ctx context.Context) error {
		if h := c.Health(ctx); h.Status == component.StatusUnhealthy {
			return errors.ServiceUnavailable(h.Name).WithDetail("reason", h.Message)
		}
		return nil
	}
}

// runReport is the printed form of a dag.Run.
type runReport struct {
	ID        string       `yaml:"id"`
	Pipeline  string       `yaml:"pipeline"`
	Started   time.Time    `yaml:"started"`
	Duration  string       `yaml:"duration"`
	Arguments any          `yaml:"arguments"`
	Outputs   any          `yaml:"outputs,omitempty"`
	Nodes     []nodeReport `yaml:"nodes"`
}

type nodeReport struct {
	Name     string `yaml:"name"`
	Status   string `yaml:"status"`
	Duration string `yaml:"duration,omitempty"`
	Output   any    `yaml:"output,omitempty"`
	Code     string `yaml:"code,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

func newRunReport(run *dag.Run) runReport {
	r := runReport{
		ID:        run.ID.String(),
		Pipeline:  run.Pipeline,
		Started:   run.Started.UTC(),
		Duration:  run.Finished.Sub(run.Started).Round(time.Millisecond).String(),
		Arguments: run.Arguments,
	}
	if len(run.Outputs) > 0 {
		r.Outputs = run.Outputs
	}
	if run.Result == nil {
		return r
	}
	for _, name := range run.Result.Order {
		nr := run.Result.NodeResults[name]
		n := nodeReport{Name: nr.Name, Status: nr.Status, Output: nr.Output}
		if nr.Status != dag.StatusSkipped {
			n.Duration = nr.Duration.Round(time.Millisecond).String()
		}
		if nr.Error != nil {
			n.Code = string(errors.CodeOf(nr.Error))
			n.Error = nr.Error.Error()
		}
		r.Nodes = append(r.Nodes, n)
	}
	return r
}

func printRun(out io.Writer, run *dag.Run) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(newRunReport(run)); err != nil {
		return err
	}
	return enc.Close()
}
