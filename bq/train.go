package bq

import (
	"context"
	"strconv"
	"time"

	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/provider"
	"github.com/kbukum/segmentation/validation"
)

// TrainRequest are the inputs of a k-means training job.
type TrainRequest struct {
	ProjectID       string
	Location        string
	ModelDatasetID  string
	ModelPrefix     string
	VertexModelName string
	TrainingTable   string
	ExcludeFeatures []string
	Options         KMeansOptions
}

// Validate checks formats and option ranges.
func (r TrainRequest) Validate() error {
	v := validation.New().
		Required("project_id", r.ProjectID).
		ProjectID("project_id", r.ProjectID).
		Required("model_dataset_id", r.ModelDatasetID).
		DatasetID("model_dataset_id", r.ModelDatasetID).
		Required("model_name_bq_prefix", r.ModelPrefix).
		Identifier("model_name_bq_prefix", r.ModelPrefix).
		Required("vertex_model_name", r.VertexModelName).
		Required("training_data_bq_table", r.TrainingTable).
		TableID("training_data_bq_table", r.TrainingTable, 2).
		Min("km_num_clusters", r.Options.NumClusters, 2).
		Min("km_max_iterations", r.Options.MaxIterations, 1).
		OneOf("km_init_method", r.Options.InitMethod, InitMethods).
		OneOf("km_distance_type", r.Options.DistanceType, DistanceTypes).
		NonNegative("km_min_rel_progress", r.Options.MinRelProgress)
	for _, col := range r.ExcludeFeatures {
		v.Identifier("exclude_features", col)
	}
	return v.Err()
}

// Trainer creates a k-means model named "<prefix>_<unix seconds>" and
// registers it in Vertex AI. Job failures are not retried.
type Trainer struct {
	wh  Warehouse
	now func() time.Time
}

var _ provider.RequestResponse[TrainRequest, ModelRef] = (*Trainer)(nil)

// NewTrainer creates a Trainer. A nil clock uses time.Now.
func NewTrainer(wh Warehouse, now func() time.Time) *Trainer {
	if now == nil {
		now = time.Now
	}
	return &Trainer{wh: wh, now: now}
}

func (t *Trainer) Name() string                       { return "bq_clustering_exec" }
func (t *Trainer) IsAvailable(_ context.Context) bool { return t.wh != nil }

// Execute trains the model and returns its reference.
func (t *Trainer) Execute(ctx context.Context, req TrainRequest) (ModelRef, error) {
	if err := req.Validate(); err != nil {
		return ModelRef{}, err
	}
	project, dataset, err := ParseDataset(req.ModelDatasetID, req.ProjectID)
	if err != nil {
		return ModelRef{}, err
	}
	source, err := ParseTableRef(req.TrainingTable, req.ProjectID)
	if err != nil {
		return ModelRef{}, err
	}

	model := ModelRef{
		ProjectID: project,
		DatasetID: dataset,
		ModelID:   req.ModelPrefix + "_" + strconv.FormatInt(t.now().Unix(), 10),
	}
	_, err = t.wh.Exec(ctx, Job{
		SQL:       CreateModelSQL(model, req.VertexModelName, source, req.ExcludeFeatures, req.Options),
		ProjectID: req.ProjectID,
		Location:  req.Location,
		Labels:    map[string]string{"operation": "train"},
	})
	if err != nil {
		return ModelRef{}, asJobError("train "+model.String(), err)
	}
	return model, nil
}

// asJobError keeps AppErrors as they are and wraps anything else as JOB_FAILED.
func asJobError(job string, err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.JobFailed(job, err)
}
