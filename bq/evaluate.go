package bq

import (
	"context"

	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/provider"
)

// EvaluateRequest identifies the model to evaluate.
type EvaluateRequest struct {
	Model    ModelRef
	Location string
}

// Evaluator runs ML.EVALUATE on a model.
type Evaluator struct {
	wh Warehouse
}

var _ provider.RequestResponse[EvaluateRequest, Evaluation] = (*Evaluator)(nil)

// NewEvaluator creates an Evaluator.
func NewEvaluator(wh Warehouse) *Evaluator { return &Evaluator{wh: wh} }

func (e *Evaluator) Name() string                       { return "bq_evaluate" }
func (e *Evaluator) IsAvailable(_ context.Context) bool { return e.wh != nil }

func (e *Evaluator) Execute(ctx context.Context, req EvaluateRequest) (Evaluation, error) {
	if req.Model.IsZero() {
		return Evaluation{}, errors.MissingField("model")
	}
	eval, err := e.wh.Evaluate(ctx, req.Model, req.Location)
	if err != nil {
		return Evaluation{}, asJobError("evaluate "+req.Model.String(), err)
	}
	eval.Model = req.Model
	return eval, nil
}
