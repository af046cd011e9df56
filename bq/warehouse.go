package bq

import "context"

// Job is one SQL statement submitted to the warehouse.
type Job struct {
	// SQL is the statement; every table and model in it is fully qualified.
	SQL string
	// ProjectID resolves unqualified names; billing uses the client project.
	ProjectID string
	// Location is the processing location. Empty uses the client default.
	Location string
	// Labels are attached to the job.
	Labels map[string]string
}

// JobResult describes a finished job.
type JobResult struct {
	JobID string
}

// Warehouse is the BigQuery surface the operations depend on.
//
// Exec runs a statement to completion; a job that finishes with an error is
// a JOB_FAILED error. ListModels returns every model in a dataset whose id
// starts with prefix. Evaluate runs ML.EVALUATE on a k-means model.
type Warehouse interface {
	Exec(ctx context.Context, job Job) (JobResult, error)
	ListModels(ctx context.Context, projectID, datasetID, prefix string) ([]ModelInfo, error)
	Evaluate(ctx context.Context, model ModelRef, location string) (Evaluation, error)
}
