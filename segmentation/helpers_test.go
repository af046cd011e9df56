package segmentation

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/segmentation/activation"
	"github.com/kbukum/segmentation/bq"
	"github.com/kbukum/segmentation/bq/bqtest"
	"github.com/kbukum/segmentation/component"
	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/resilience"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func clock() time.Time { return fixedNow }

var fastRetry = resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

// fakePublisher records publications instead of sending them.
type fakePublisher struct {
	mu      sync.Mutex
	started bool
	stopped bool
	err     error
	pubs    []activation.Publication
}

var _ activation.Publisher = (*fakePublisher)(nil)

func (f *fakePublisher) Name() string                       { return "fake-publisher" }
func (f *fakePublisher) IsAvailable(_ context.Context) bool { return true }

func (f *fakePublisher) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakePublisher) Stop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakePublisher) Health(_ context.Context) component.Health {
	return component.Health{Name: f.Name(), Status: component.StatusHealthy}
}

func (f *fakePublisher) Describe() component.Description {
	return component.Description{Type: "publisher", Details: "in memory"}
}

func (f *fakePublisher) Execute(_ context.Context, pub activation.Publication) (activation.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, pub)
	if f.err != nil {
		return activation.Receipt{}, f.err
	}
	return activation.Receipt{Transport: "fake", Topic: pub.Topic, MessageID: "msg-1", PublishedAt: fixedNow}, nil
}

func (f *fakePublisher) publications() []activation.Publication {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]activation.Publication(nil), f.pubs...)
}

// recordingWarehouse logs the order of warehouse calls.
type recordingWarehouse struct {
	*bqtest.Warehouse
	mu    sync.Mutex
	calls []string
}

func (w *recordingWarehouse) record(call string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, call)
}

func (w *recordingWarehouse) Exec(ctx context.Context, job bq.Job) (bq.JobResult, error) {
	w.record("exec:" + job.Labels["operation"])
	return w.Warehouse.Exec(ctx, job)
}

func (w *recordingWarehouse) Evaluate(ctx context.Context, model bq.ModelRef, location string) (bq.Evaluation, error) {
	w.record("evaluate:" + model.ModelID)
	return w.Warehouse.Evaluate(ctx, model, location)
}

func (w *recordingWarehouse) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func modelRef(id string) bq.ModelRef {
	return bq.ModelRef{ProjectID: "my-project", DatasetID: "segmentation", ModelID: id}
}

// seededWarehouse holds four models. With three considered and a threshold
// of 0.5, segmentation_model_2 wins; segmentation_model_1 is better but too old.
func seededWarehouse() *bqtest.Warehouse {
	wh := bqtest.New()
	wh.AddModel(bq.ModelInfo{Ref: modelRef("segmentation_model_4"), Created: fixedNow.Add(-1 * time.Hour)}, bq.Evaluation{DaviesBouldinIndex: new(0.6)})
	wh.AddModel(bq.ModelInfo{Ref: modelRef("segmentation_model_3"), Created: fixedNow.Add(-2 * time.Hour)}, bq.Evaluation{DaviesBouldinIndex: new(0.45)})
	wh.AddModel(bq.ModelInfo{Ref: modelRef("segmentation_model_2"), Created: fixedNow.Add(-3 * time.Hour)}, bq.Evaluation{DaviesBouldinIndex: new(0.3)})
	wh.AddModel(bq.ModelInfo{Ref: modelRef("segmentation_model_1"), Created: fixedNow.Add(-4 * time.Hour)}, bq.Evaluation{DaviesBouldinIndex: new(0.1)})
	return wh
}

func trainingParams() TrainingParams {
	return TrainingParams{
		ProjectID:       "my-project",
		Location:        "US",
		ModelDatasetID:  "segmentation",
		ModelNamePrefix: "segmentation_model",
		VertexModelName: "audience-segments",
		TrainingTable:   "feature_store.users",
		ExcludeFeatures: []string{"user_id"},
		NumClusters:     4,
		InitMethod:      "KMEANS++",
		DistanceType:    "EUCLIDEAN",
		MaxIterations:   20,
		EarlyStop:       true,
		MinRelProgress:  0.01,
	}
}

func predictionParams() PredictionParams {
	return PredictionParams{
		ProjectID:         "my-project",
		Location:          "US",
		ModelDatasetID:    "segmentation",
		ModelNamePrefix:   "segmentation_model",
		MetricName:        "davies_bouldin_index",
		MetricThreshold:   0.5,
		ModelsConsidered:  3,
		Source:            "my-project.feature_store.users",
		DestinationPrefix: "preds_",
		ActivationTopic:   "activations",
		ActivationType:    "purchase-propensity",
	}
}

func testComponents(wh bq.Warehouse, pub activation.Publisher) Components {
	return Components{
		Warehouse:    wh,
		Publisher:    pub,
		ListRetry:    fastRetry,
		PublishRetry: fastRetry,
		Now:          clock,
		Logger:       logger.NewNop(),
	}
}

func testRunner(comps Components) *dag.Runner {
	return &dag.Runner{Registry: comps.Registry(), Logger: logger.NewNop()}
}
