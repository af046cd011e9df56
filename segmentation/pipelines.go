package segmentation

import (
	"sort"

	"github.com/kbukum/segmentation/activation"
	"github.com/kbukum/segmentation/bq"
	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/version"
)

// Pipeline names.
const (
	TrainingPipelineName   = "training-pipeline"
	PredictionPipelineName = "prediction-pipeline"
)

// Component names.
const (
	ComponentTrain    = "bq_clustering_exec"
	ComponentEvaluate = "bq_evaluate"
	ComponentSelect   = "bq_select_best_kmeans_model"
	ComponentPredict  = "bq_clustering_predictions"
	ComponentFlatten  = "bq_flatten_kmeans_prediction_table"
	ComponentActivate = "send_pubsub_activation_msg"
)

// Node names.
const (
	NodeTrain    = "train"
	NodeEvaluate = "evaluate"
	NodeSelect   = "select_best_model"
	NodePredict  = "predict"
	NodeFlatten  = "flatten"
	NodeActivate = "activate"
)

// Parameter ports.
var (
	projectID         = dag.Param[string]("project_id")
	location          = dag.Param[string]("location")
	modelDatasetID    = dag.Param[string]("model_dataset_id")
	modelPrefix       = dag.Param[string]("model_name_bq_prefix")
	vertexModelName   = dag.Param[string]("vertex_model_name")
	trainingTable     = dag.Param[string]("training_data_bq_table")
	excludeFeatures   = dag.Param[[]string]("exclude_features")
	numClusters       = dag.Param[int]("km_num_clusters")
	initMethod        = dag.Param[string]("km_init_method")
	distanceType      = dag.Param[string]("km_distance_type")
	standardize       = dag.Param[bool]("km_standardize_features")
	maxIterations     = dag.Param[int]("km_max_iterations")
	earlyStop         = dag.Param[bool]("km_early_stop")
	minRelProgress    = dag.Param[float64]("km_min_rel_progress")
	warmStart         = dag.Param[bool]("km_warm_start")
	metricName        = dag.Param[string]("model_metric_name")
	metricThreshold   = dag.Param[float64]("model_metric_threshold")
	modelsConsidered  = dag.Param[int]("number_of_models_considered")
	bigquerySource    = dag.Param[string]("bigquery_source")
	destinationPrefix = dag.Param[string]("bigquery_destination_prefix")
	activationTopic   = dag.Param[string]("pubsub_activation_topic")
	activationType    = dag.Param[string]("pubsub_activation_type")
)

// Output ports.
var (
	TrainedModel     = dag.Output[bq.ModelRef](NodeTrain, "model")
	ModelMetrics     = dag.Output[bq.Evaluation](NodeEvaluate, "metrics")
	ElectedModel     = dag.Output[bq.ModelRef](NodeSelect, "elected_model")
	PredictionsTable = dag.Output[bq.TableRef](NodePredict, "destination_table")
	FlattenedTable   = dag.Output[bq.TableRef](NodeFlatten, "destination_table")
	ActivationSent   = dag.Output[activation.Receipt](NodeActivate, "receipt")
)

// TrainingPipeline returns a new training pipeline document:
// train, then evaluate the trained model.
func TrainingPipeline() *dag.Pipeline {
	return &dag.Pipeline{
		Name:        TrainingPipelineName,
		Description: "Train a BigQuery ML k-means model, register it in Vertex AI and evaluate it.",
		Labels:      version.Labels(),
		Params: []dag.ParamDef{
			projectID.ParamDef(false),
			location.ParamDef(false),
			modelDatasetID.ParamDef(false),
			modelPrefix.ParamDef(false),
			vertexModelName.ParamDef(false),
			trainingTable.ParamDef(false),
			excludeFeatures.ParamDef(false),
			numClusters.ParamDef(false),
			initMethod.ParamDef(false),
			distanceType.ParamDef(false),
			standardize.ParamDef(false),
			maxIterations.ParamDef(false),
			earlyStop.ParamDef(false),
			minRelProgress.ParamDef(false),
			warmStart.ParamDef(false),
		},
		Nodes: []dag.NodeDef{
			{
				Name:      NodeTrain,
				Component: ComponentTrain,
				Inputs: map[string]dag.Input{
					"project_id":              projectID.Input(),
					"location":                location.Input(),
					"model_dataset_id":        modelDatasetID.Input(),
					"model_name_bq_prefix":    modelPrefix.Input(),
					"vertex_model_name":       vertexModelName.Input(),
					"training_data_bq_table":  trainingTable.Input(),
					"exclude_features":        excludeFeatures.Input(),
					"km_num_clusters":         numClusters.Input(),
					"km_init_method":          initMethod.Input(),
					"km_distance_type":        distanceType.Input(),
					"km_standardize_features": standardize.Input(),
					"km_max_iterations":       maxIterations.Input(),
					"km_early_stop":           earlyStop.Input(),
					"km_min_rel_progress":     minRelProgress.Input(),
					"km_warm_start":           warmStart.Input(),
				},
				Outputs: []dag.OutputDef{TrainedModel.Def()},
			},
			{
				Name:      NodeEvaluate,
				Component: ComponentEvaluate,
				Inputs: map[string]dag.Input{
					"project":  projectID.Input(),
					"location": location.Input(),
					"model":    TrainedModel.Input(),
				},
				Outputs:   []dag.OutputDef{ModelMetrics.Def()},
				DependsOn: []string{NodeTrain},
			},
		},
	}
}

// PredictionPipeline returns a new prediction pipeline document:
// select the best model, predict, flatten the predictions and activate.
func PredictionPipeline() *dag.Pipeline {
	return &dag.Pipeline{
		Name:        PredictionPipelineName,
		Description: "Score a table with the best recent k-means model and announce the flattened predictions.",
		Labels:      version.Labels(),
		Params: []dag.ParamDef{
			projectID.ParamDef(false),
			location.ParamDef(true),
			modelDatasetID.ParamDef(false),
			modelPrefix.ParamDef(false),
			metricName.ParamDef(false),
			metricThreshold.ParamDef(false),
			modelsConsidered.ParamDef(false),
			bigquerySource.ParamDef(false),
			destinationPrefix.ParamDef(false),
			activationTopic.ParamDef(false),
			activationType.ParamDef(false),
		},
		Nodes: []dag.NodeDef{
			{
				Name:        NodeSelect,
				Component:   ComponentSelect,
				DisplayName: "elect_latest_model",
				Inputs: map[string]dag.Input{
					"project_id":                  projectID.Input(),
					"location":                    location.Input(),
					"model_prefix":                modelPrefix.Input(),
					"dataset_id":                  modelDatasetID.Input(),
					"metric_name":                 metricName.Input(),
					"metric_threshold":            metricThreshold.Input(),
					"number_of_models_considered": modelsConsidered.Input(),
				},
				Outputs: []dag.OutputDef{ElectedModel.Def()},
			},
			{
				Name:      NodePredict,
				Component: ComponentPredict,
				Inputs: map[string]dag.Input{
					"model":                       ElectedModel.Input(),
					"project_id":                  projectID.Input(),
					"location":                    location.Input(),
					"bigquery_source":             bigquerySource.Input(),
					"bigquery_destination_prefix": destinationPrefix.Input(),
				},
				Outputs: []dag.OutputDef{PredictionsTable.Def()},
			},
			{
				Name:      NodeFlatten,
				Component: ComponentFlatten,
				Inputs: map[string]dag.Input{
					"project_id":   projectID.Input(),
					"location":     location.Input(),
					"source_table": PredictionsTable.Input(),
				},
				Outputs: []dag.OutputDef{FlattenedTable.Def()},
			},
			{
				Name:      NodeActivate,
				Component: ComponentActivate,
				Inputs: map[string]dag.Input{
					"project":           projectID.Input(),
					"topic_name":        activationTopic.Input(),
					"activation_type":   activationType.Input(),
					"predictions_table": FlattenedTable.Input(),
				},
				Outputs: []dag.OutputDef{ActivationSent.Def()},
			},
		},
	}
}

var builtins = map[string]func() *dag.Pipeline{
	TrainingPipelineName:   TrainingPipeline,
	PredictionPipelineName: PredictionPipeline,
}

// Lookup returns a new document of the named built-in pipeline.
func Lookup(name string) (*dag.Pipeline, error) {
	build, ok := builtins[name]
	if !ok {
		return nil, errors.NotFound("pipeline", name).WithDetail("available", Names())
	}
	return build(), nil
}

// Names returns the built-in pipeline names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
