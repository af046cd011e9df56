package bq

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/provider"
	"github.com/kbukum/segmentation/resilience"
	"github.com/kbukum/segmentation/validation"
)

// SelectRequest are the election criteria.
type SelectRequest struct {
	ProjectID   string
	Location    string
	DatasetID   string
	ModelPrefix string
	Metric      string
	Threshold   float64
	// Candidates is how many of the most recent matching models are evaluated.
	Candidates int
}

// Validate checks formats and ranges.
func (r SelectRequest) Validate() error {
	return validation.New().
		Required("project_id", r.ProjectID).
		ProjectID("project_id", r.ProjectID).
		Required("model_dataset_id", r.DatasetID).
		DatasetID("model_dataset_id", r.DatasetID).
		Required("model_name_bq_prefix", r.ModelPrefix).
		Required("model_metric_name", r.Metric).
		OneOf("model_metric_name", r.Metric, Metrics()).
		NonNegative("model_metric_threshold", r.Threshold).
		Min("number_of_models_considered", r.Candidates, 1).
		Err()
}

// Selector elects the best of the most recent models sharing a prefix.
//
// The Candidates most recent models are evaluated. Models whose metric is
// at or below Threshold qualify, and the one with the lowest metric wins;
// on a tie the more recent model wins. No qualifying model is a terminal
// NO_QUALIFYING_MODEL error.
type Selector struct {
	wh Warehouse
	// Retry applies to model listing only.
	Retry resilience.RetryConfig
	// Parallel bounds concurrent evaluations.
	Parallel int
	log      *logger.Logger
}

var _ provider.RequestResponse[SelectRequest, ModelRef] = (*Selector)(nil)

// NewSelector creates a Selector with default listing retries.
func NewSelector(wh Warehouse, log *logger.Logger) *Selector {
	return &Selector{
		wh:       wh,
		Retry:    resilience.DefaultRetryConfig(),
		Parallel: 4,
		log:      log.WithComponent("bq.select"),
	}
}

func (s *Selector) Name() string                       { return "bq_select_best_kmeans_model" }
func (s *Selector) IsAvailable(_ context.Context) bool { return s.wh != nil }

func (s *Selector) Execute(ctx context.Context, req SelectRequest) (ModelRef, error) {
	if err := req.Validate(); err != nil {
		return ModelRef{}, err
	}
	metric, err := ParseMetric(req.Metric)
	if err != nil {
		return ModelRef{}, err
	}
	project, dataset, err := ParseDataset(req.DatasetID, req.ProjectID)
	if err != nil {
		return ModelRef{}, err
	}

	models, err := resilience.Retry(ctx, s.Retry, func() ([]ModelInfo, error) {
		return s.wh.ListModels(ctx, project, dataset, req.ModelPrefix)
	})
	if err != nil {
		return ModelRef{}, err
	}
	candidates := MostRecent(models, req.Candidates)
	if len(candidates) == 0 {
		return ModelRef{}, errors.NoQualifyingModel(req.ModelPrefix, req.Metric, req.Threshold).
			WithDetail("reason", "no models match the prefix")
	}

	evals, err := s.evaluate(ctx, candidates, req.Location)
	if err != nil {
		return ModelRef{}, err
	}

	best, ok := Elect(candidates, evals, metric, req.Threshold)
	if !ok {
		return ModelRef{}, errors.NoQualifyingModel(req.ModelPrefix, req.Metric, req.Threshold).
			WithDetail("considered", len(candidates))
	}
	s.log.Info("model elected", logger.Fields(
		"model", best.String(),
		"metric", req.Metric,
		"considered", len(candidates),
	))
	return best, nil
}

// evaluate runs ML.EVALUATE on every candidate concurrently. Results are
// index-aligned with candidates.
func (s *Selector) evaluate(ctx context.Context, candidates []ModelInfo, location string) ([]Evaluation, error) {
	evals := make([]Evaluation, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	if s.Parallel > 0 {
		g.SetLimit(s.Parallel)
	}
	for i, c := range candidates {
		g.Go(func() error {
			eval, err := s.wh.Evaluate(ctx, c.Ref, location)
			if err != nil {
				return asJobError("evaluate "+c.Ref.String(), err)
			}
			evals[i] = eval
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evals, nil
}

// MostRecent returns the n most recently created models, newest first.
// Models created at the same instant are ordered by id, descending.
func MostRecent(models []ModelInfo, n int) []ModelInfo {
	sorted := append([]ModelInfo(nil), models...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Created.Equal(sorted[j].Created) {
			return sorted[i].Created.After(sorted[j].Created)
		}
		return sorted[i].Ref.ModelID > sorted[j].Ref.ModelID
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Elect picks the candidate with the lowest metric at or below threshold.
// A candidate whose evaluation lacks the metric never qualifies.
// candidates are newest first, so the first minimum found is the most recent.
func Elect(candidates []ModelInfo, evals []Evaluation, metric Metric, threshold float64) (ModelRef, bool) {
	var (
		best  ModelRef
		score float64
		found bool
	)
	for i, c := range candidates {
		v, err := evals[i].Value(metric)
		if err != nil || v > threshold {
			continue
		}
		if !found || v < score {
			best, score, found = c.Ref, v, true
		}
	}
	return best, found
}
