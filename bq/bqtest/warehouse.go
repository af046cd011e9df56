// Package bqtest provides an in-memory bq.Warehouse for tests.
package bqtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kbukum/segmentation/bq"
	"github.com/kbukum/segmentation/errors"
)

// Warehouse is an in-memory bq.Warehouse. It records every job and serves
// models and evaluations from its fields.
type Warehouse struct {
	mu          sync.Mutex
	models      []bq.ModelInfo
	evaluations map[string]bq.Evaluation
	jobs        []bq.Job
	listCalls   int

	// ExecErr, when set, decides the outcome of each Exec.
	ExecErr func(job bq.Job) error
	// ListErr, when set, is returned by the first ListErrTimes listings.
	ListErr      error
	ListErrTimes int
}

var _ bq.Warehouse = (*Warehouse)(nil)

// New creates an empty Warehouse.
func New() *Warehouse {
	return &Warehouse{evaluations: make(map[string]bq.Evaluation)}
}

// AddModel registers a model and its evaluation.
func (w *Warehouse) AddModel(info bq.ModelInfo, eval bq.Evaluation) *Warehouse {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.models = append(w.models, info)
	eval.Model = info.Ref
	w.evaluations[info.Ref.String()] = eval
	return w
}

// Exec records job.
func (w *Warehouse) Exec(_ context.Context, job bq.Job) (bq.JobResult, error) {
	w.mu.Lock()
	w.jobs = append(w.jobs, job)
	id := fmt.Sprintf("job_%d", len(w.jobs))
	fn := w.ExecErr
	w.mu.Unlock()

	if fn != nil {
		if err := fn(job); err != nil {
			return bq.JobResult{}, err
		}
	}
	return bq.JobResult{JobID: id}, nil
}

// ListModels returns registered models in the dataset matching prefix.
func (w *Warehouse) ListModels(_ context.Context, projectID, datasetID, prefix string) ([]bq.ModelInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listCalls++
	if w.ListErr != nil && w.listCalls <= w.ListErrTimes {
		return nil, w.ListErr
	}
	var out []bq.ModelInfo
	for _, m := range w.models {
		if m.Ref.ProjectID == projectID && m.Ref.DatasetID == datasetID && strings.HasPrefix(m.Ref.ModelID, prefix) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Evaluate returns the registered evaluation of model.
func (w *Warehouse) Evaluate(_ context.Context, model bq.ModelRef, _ string) (bq.Evaluation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	eval, ok := w.evaluations[model.String()]
	if !ok {
		return bq.Evaluation{}, errors.NotFound("model", model.String())
	}
	return eval, nil
}

// Jobs returns the recorded jobs in submission order.
func (w *Warehouse) Jobs() []bq.Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]bq.Job(nil), w.jobs...)
}

// ListCalls returns how many times ListModels was called.
func (w *Warehouse) ListCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.listCalls
}
