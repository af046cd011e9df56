package segmentation

import (
	stderrors "errors"
	"time"

	"github.com/kbukum/segmentation/activation"
	"github.com/kbukum/segmentation/bq"
	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/provider"
	"github.com/kbukum/segmentation/resilience"
)

// Components are the backends pipeline operations run against. A nil
// Warehouse or Publisher still yields a registry usable for checking
// documents; only building nodes needs them.
type Components struct {
	Warehouse bq.Warehouse
	Publisher activation.Publisher
	// ListRetry applies to model listing. Zero uses the selector default.
	ListRetry resilience.RetryConfig
	// PublishRetry applies to the activation publish.
	PublishRetry resilience.RetryConfig
	// Now names models and prediction tables. Nil uses time.Now.
	Now    func() time.Time
	Logger *logger.Logger
}

// Registry returns a registry holding the six segmentation components.
func (c Components) Registry() *dag.Registry {
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
	reg := dag.NewRegistry()
	reg.MustRegister(c.train())
	reg.MustRegister(c.evaluate())
	reg.MustRegister(c.selectBest())
	reg.MustRegister(c.predict())
	reg.MustRegister(c.flatten())
	reg.MustRegister(c.activate())
	return reg
}

func (c Components) train() dag.ComponentSpec {
	return dag.ComponentSpec{
		Name: ComponentTrain,
		Inputs: []dag.InputSpec{
			required[string]("project_id"),
			required[string]("location"),
			required[string]("model_dataset_id"),
			required[string]("model_name_bq_prefix"),
			required[string]("vertex_model_name"),
			required[string]("training_data_bq_table"),
			optional[[]string]("exclude_features"),
			required[int]("km_num_clusters"),
			required[string]("km_init_method"),
			required[string]("km_distance_type"),
			required[bool]("km_standardize_features"),
			required[int]("km_max_iterations"),
			required[bool]("km_early_stop"),
			required[float64]("km_min_rel_progress"),
			required[bool]("km_warm_start"),
		},
		Outputs: []dag.OutputDef{TrainedModel.Def()},
		Factory: func(def dag.NodeDef) (dag.Node, error) {
			if c.Warehouse == nil {
				return nil, errNoWarehouse
			}
			return dag.FromProvider(dag.NodeConfig[bq.TrainRequest, bq.ModelRef]{
				Name:    def.Name,
				Service: instrument[bq.TrainRequest, bq.ModelRef](c.Logger, "bigquery", bq.NewTrainer(c.Warehouse, c.Now)),
				Extract: func(state *dag.State) (bq.TrainRequest, error) {
					r := &reader{state: state, def: def}
					req := bq.TrainRequest{
						ProjectID:       read[string](r, "project_id"),
						Location:        read[string](r, "location"),
						ModelDatasetID:  read[string](r, "model_dataset_id"),
						ModelPrefix:     read[string](r, "model_name_bq_prefix"),
						VertexModelName: read[string](r, "vertex_model_name"),
						TrainingTable:   read[string](r, "training_data_bq_table"),
						ExcludeFeatures: readOptional[[]string](r, "exclude_features"),
						Options: bq.KMeansOptions{
							NumClusters:         read[int](r, "km_num_clusters"),
							InitMethod:          read[string](r, "km_init_method"),
							DistanceType:        read[string](r, "km_distance_type"),
							StandardizeFeatures: read[bool](r, "km_standardize_features"),
							MaxIterations:       read[int](r, "km_max_iterations"),
							EarlyStop:           read[bool](r, "km_early_stop"),
							MinRelProgress:      read[float64](r, "km_min_rel_progress"),
							WarmStart:           read[bool](r, "km_warm_start"),
						},
					}
					return req, r.err
				},
				Output: dag.Output[bq.ModelRef](def.Name, TrainedModel.Def().Name),
			}), nil
		},
	}
}

func (c Components) evaluate() dag.ComponentSpec {
	return dag.ComponentSpec{
		Name: ComponentEvaluate,
		Inputs: []dag.InputSpec{
			required[string]("project"),
			optional[string]("location"),
			required[bq.ModelRef]("model"),
		},
		Outputs: []dag.OutputDef{ModelMetrics.Def()},
		Factory: func(def dag.NodeDef) (dag.Node, error) {
			if c.Warehouse == nil {
				return nil, errNoWarehouse
			}
			return dag.FromProvider(dag.NodeConfig[bq.EvaluateRequest, bq.Evaluation]{
				Name:    def.Name,
				Service: instrument[bq.EvaluateRequest, bq.Evaluation](c.Logger, "bigquery", bq.NewEvaluator(c.Warehouse)),
				Extract: func(state *dag.State) (bq.EvaluateRequest, error) {
					r := &reader{state: state, def: def}
					project := read[string](r, "project")
					req := bq.EvaluateRequest{
						Model:    read[bq.ModelRef](r, "model"),
						Location: readOptional[string](r, "location"),
					}
					if req.Model.ProjectID == "" {
						req.Model.ProjectID = project
					}
					return req, r.err
				},
				Output: dag.Output[bq.Evaluation](def.Name, ModelMetrics.Def().Name),
			}), nil
		},
	}
}

func (c Components) selectBest() dag.ComponentSpec {
	return dag.ComponentSpec{
		Name: ComponentSelect,
		Inputs: []dag.InputSpec{
			required[string]("project_id"),
			optional[string]("location"),
			required[string]("model_prefix"),
			required[string]("dataset_id"),
			required[string]("metric_name"),
			required[float64]("metric_threshold"),
			required[int]("number_of_models_considered"),
		},
		Outputs: []dag.OutputDef{ElectedModel.Def()},
		Factory: func(def dag.NodeDef) (dag.Node, error) {
			if c.Warehouse == nil {
				return nil, errNoWarehouse
			}
			selector := bq.NewSelector(c.Warehouse, c.Logger)
			if c.ListRetry.MaxAttempts > 0 {
				selector.Retry = c.ListRetry
			}
			return dag.FromProvider(dag.NodeConfig[bq.SelectRequest, bq.ModelRef]{
				Name:    def.Name,
				Service: instrument[bq.SelectRequest, bq.ModelRef](c.Logger, "bigquery", selector),
				Extract: func(state *dag.State) (bq.SelectRequest, error) {
					r := &reader{state: state, def: def}
					req := bq.SelectRequest{
						ProjectID:   read[string](r, "project_id"),
						Location:    readOptional[string](r, "location"),
						ModelPrefix: read[string](r, "model_prefix"),
						DatasetID:   read[string](r, "dataset_id"),
						Metric:      read[string](r, "metric_name"),
						Threshold:   read[float64](r, "metric_threshold"),
						Candidates:  read[int](r, "number_of_models_considered"),
					}
					return req, r.err
				},
				Output: dag.Output[bq.ModelRef](def.Name, ElectedModel.Def().Name),
			}), nil
		},
	}
}

func (c Components) predict() dag.ComponentSpec {
	return dag.ComponentSpec{
		Name: ComponentPredict,
		Inputs: []dag.InputSpec{
			required[bq.ModelRef]("model"),
			required[string]("project_id"),
			optional[string]("location"),
			required[string]("bigquery_source"),
			required[string]("bigquery_destination_prefix"),
		},
		Outputs: []dag.OutputDef{PredictionsTable.Def()},
		Factory: func(def dag.NodeDef) (dag.Node, error) {
			if c.Warehouse == nil {
				return nil, errNoWarehouse
			}
			return dag.FromProvider(dag.NodeConfig[bq.PredictRequest, bq.TableRef]{
				Name:    def.Name,
				Service: instrument[bq.PredictRequest, bq.TableRef](c.Logger, "bigquery", bq.NewPredictor(c.Warehouse, c.Now)),
				Extract: func(state *dag.State) (bq.PredictRequest, error) {
					r := &reader{state: state, def: def}
					req := bq.PredictRequest{
						Model:             read[bq.ModelRef](r, "model"),
						ProjectID:         read[string](r, "project_id"),
						Location:          readOptional[string](r, "location"),
						Source:            read[string](r, "bigquery_source"),
						DestinationPrefix: read[string](r, "bigquery_destination_prefix"),
					}
					return req, r.err
				},
				Output: dag.Output[bq.TableRef](def.Name, PredictionsTable.Def().Name),
			}), nil
		},
	}
}

func (c Components) flatten() dag.ComponentSpec {
	return dag.ComponentSpec{
		Name: ComponentFlatten,
		Inputs: []dag.InputSpec{
			required[string]("project_id"),
			optional[string]("location"),
			required[bq.TableRef]("source_table"),
		},
		Outputs: []dag.OutputDef{FlattenedTable.Def()},
		Factory: func(def dag.NodeDef) (dag.Node, error) {
			if c.Warehouse == nil {
				return nil, errNoWarehouse
			}
			return dag.FromProvider(dag.NodeConfig[bq.FlattenRequest, bq.TableRef]{
				Name:    def.Name,
				Service: instrument[bq.FlattenRequest, bq.TableRef](c.Logger, "bigquery", bq.NewFlattener(c.Warehouse)),
				Extract: func(state *dag.State) (bq.FlattenRequest, error) {
					r := &reader{state: state, def: def}
					req := bq.FlattenRequest{
						ProjectID: read[string](r, "project_id"),
						Location:  readOptional[string](r, "location"),
						Source:    read[bq.TableRef](r, "source_table"),
					}
					return req, r.err
				},
				Output: dag.Output[bq.TableRef](def.Name, FlattenedTable.Def().Name),
			}), nil
		},
	}
}

func (c Components) activate() dag.ComponentSpec {
	return dag.ComponentSpec{
		Name: ComponentActivate,
		Inputs: []dag.InputSpec{
			required[string]("project"),
			required[string]("topic_name"),
			required[string]("activation_type"),
			required[bq.TableRef]("predictions_table"),
		},
		Outputs: []dag.OutputDef{ActivationSent.Def()},
		Factory: func(def dag.NodeDef) (dag.Node, error) {
			if c.Publisher == nil {
				return nil, errNoPublisher
			}
			return dag.FromProvider(dag.NodeConfig[activation.ActivateRequest, activation.Receipt]{
				Name:    def.Name,
				Service: instrument(c.Logger, "activation", activation.NewActivator(c.Publisher, c.PublishRetry)),
				Extract: func(state *dag.State) (activation.ActivateRequest, error) {
					r := &reader{state: state, def: def}
					req := activation.ActivateRequest{
						ProjectID:      read[string](r, "project"),
						Topic:          read[string](r, "topic_name"),
						ActivationType: read[string](r, "activation_type"),
						Table:          read[bq.TableRef](r, "predictions_table"),
					}
					return req, r.err
				},
				Output: dag.Output[activation.Receipt](def.Name, ActivationSent.Def().Name),
			}), nil
		},
	}
}

var (
	errNoWarehouse = stderrors.New("no BigQuery warehouse configured")
	errNoPublisher = stderrors.New("no activation publisher configured")
)

// instrument adds logging and a span around every call of p.
func instrument[I, O any](log *logger.Logger, system string, p provider.RequestResponse[I, O]) provider.RequestResponse[I, O] {
	return provider.Chain(
		provider.WithLogging[I, O](log),
		provider.WithTracing[I, O](system),
	)(p)
}

func required[T any](name string) dag.InputSpec {
	return dag.InputSpec{Name: name, Type: dag.TypeOf[T]()}
}

func optional[T any](name string) dag.InputSpec {
	return dag.InputSpec{Name: name, Type: dag.TypeOf[T](), Optional: true}
}

// reader reads node inputs from state and keeps the first error.
type reader struct {
	state *dag.State
	def   dag.NodeDef
	err   error
}

func read[T any](r *reader, name string) T {
	var zero T
	if r.err != nil {
		return zero
	}
	v, err := dag.ReadInput[T](r.state, r.def, name)
	if err != nil {
		r.err = err
		return zero
	}
	return v
}

func readOptional[T any](r *reader, name string) T {
	var zero T
	if r.err != nil {
		return zero
	}
	v, err := dag.ReadOptionalInput[T](r.state, r.def, name)
	if err != nil {
		r.err = err
		return zero
	}
	return v
}
