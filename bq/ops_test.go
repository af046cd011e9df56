package bq_test

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/segmentation/bq"
	"github.com/kbukum/segmentation/bq/bqtest"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/resilience"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func clock() time.Time { return fixedNow }

func trainRequest() bq.TrainRequest {
	return bq.TrainRequest{
		ProjectID:       "my-project",
		Location:        "US",
		ModelDatasetID:  "segmentation",
		ModelPrefix:     "audience",
		VertexModelName: "audience-segments",
		TrainingTable:   "feature_store.users",
		ExcludeFeatures: []string{"user_id"},
		Options: bq.KMeansOptions{
			NumClusters:    4,
			InitMethod:     "KMEANS++",
			DistanceType:   "EUCLIDEAN",
			MaxIterations:  20,
			MinRelProgress: 0.01,
		},
	}
}

func TestTrainer(t *testing.T) {
	wh := bqtest.New()
	model, err := bq.NewTrainer(wh, clock).Execute(context.Background(), trainRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := bq.ModelRef{ProjectID: "my-project", DatasetID: "segmentation", ModelID: fmt.Sprintf("audience_%d", fixedNow.Unix())}
	if diff := cmp.Diff(want, model); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}
	jobs := wh.Jobs()
	if len(jobs) != 1 || jobs[0].Location != "US" || !strings.Contains(jobs[0].SQL, "`my-project.feature_store.users`") {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestTrainer_InvalidRequest(t *testing.T) {
	req := trainRequest()
	req.Options.InitMethod = "CUSTOM"
	req.ExcludeFeatures = []string{"bad-col"}
	wh := bqtest.New()
	_, err := bq.NewTrainer(wh, clock).Execute(context.Background(), req)
	if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if len(wh.Jobs()) != 0 {
		t.Fatal("no job should be submitted for an invalid request")
	}
}

func TestTrainer_JobFailure(t *testing.T) {
	wh := bqtest.New()
	wh.ExecErr = func(bq.Job) error { return fmt.Errorf("table not found") }
	_, err := bq.NewTrainer(wh, clock).Execute(context.Background(), trainRequest())
	if errors.CodeOf(err) != errors.ErrCodeJobFailed {
		t.Fatalf("expected JOB_FAILED, got %v", err)
	}
	if errors.IsRetryable(err) {
		t.Fatal("job failures must not be retryable")
	}
}

func TestEvaluator(t *testing.T) {
	model := bq.ModelRef{ProjectID: "my-project", DatasetID: "segmentation", ModelID: "audience_1"}
	wh := bqtest.New().AddModel(bq.ModelInfo{Ref: model, Created: fixedNow}, bq.Evaluation{DaviesBouldinIndex: new(0.7)})
	eval, err := bq.NewEvaluator(wh).Execute(context.Background(), bq.EvaluateRequest{Model: model})
	if err != nil || *eval.DaviesBouldinIndex != 0.7 || eval.Model != model {
		t.Fatalf("unexpected evaluation %+v (%v)", eval, err)
	}
	if _, err := bq.NewEvaluator(wh).Execute(context.Background(), bq.EvaluateRequest{}); errors.CodeOf(err) != errors.ErrCodeMissingField {
		t.Fatalf("expected MISSING_FIELD, got %v", err)
	}
}

func model(id string, age time.Duration) bq.ModelInfo {
	return bq.ModelInfo{
		Ref:     bq.ModelRef{ProjectID: "my-project", DatasetID: "segmentation", ModelID: id},
		Created: fixedNow.Add(-age),
	}
}

func selectRequest() bq.SelectRequest {
	return bq.SelectRequest{
		ProjectID:   "my-project",
		DatasetID:   "segmentation",
		ModelPrefix: "audience",
		Metric:      "davies_bouldin_index",
		Threshold:   0.5,
		Candidates:  3,
	}
}

func newSelector(wh bq.Warehouse) *bq.Selector {
	s := bq.NewSelector(wh, logger.NewNop())
	s.Retry = resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return s
}

func TestSelector_ElectsBestRecentModel(t *testing.T) {
	wh := bqtest.New().
		AddModel(model("audience_4", time.Hour), bq.Evaluation{DaviesBouldinIndex: new(0.45)}).
		AddModel(model("audience_3", 2*time.Hour), bq.Evaluation{DaviesBouldinIndex: new(0.30)}).
		AddModel(model("audience_2", 3*time.Hour), bq.Evaluation{DaviesBouldinIndex: new(0.90)}).
		AddModel(model("audience_1", 4*time.Hour), bq.Evaluation{DaviesBouldinIndex: new(0.10)}).
		AddModel(model("other_9", 0), bq.Evaluation{DaviesBouldinIndex: new(0.01)})

	got, err := newSelector(wh).Execute(context.Background(), selectRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// audience_1 scores best but is not among the 3 most recent.
	if got.ModelID != "audience_3" {
		t.Fatalf("expected audience_3, got %s", got)
	}
}

func TestSelector_TieGoesToMostRecent(t *testing.T) {
	wh := bqtest.New().
		AddModel(model("audience_old", 2*time.Hour), bq.Evaluation{MeanSquaredDistance: new(1.5)}).
		AddModel(model("audience_new", time.Hour), bq.Evaluation{MeanSquaredDistance: new(1.5)})
	req := selectRequest()
	req.Metric = "mean_squared_distance"
	req.Threshold = 2
	got, err := newSelector(wh).Execute(context.Background(), req)
	if err != nil || got.ModelID != "audience_new" {
		t.Fatalf("expected audience_new, got %v (%v)", got, err)
	}
}

func TestSelector_NoQualifyingModel(t *testing.T) {
	tests := []struct {
		name string
		wh   *bqtest.Warehouse
	}{
		{"none above threshold", bqtest.New().AddModel(model("audience_1", time.Hour), bq.Evaluation{DaviesBouldinIndex: new(0.8)})},
		{"no models", bqtest.New()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newSelector(tc.wh).Execute(context.Background(), selectRequest())
			if errors.CodeOf(err) != errors.ErrCodeNoQualifyingModel {
				t.Fatalf("expected NO_QUALIFYING_MODEL, got %v", err)
			}
		})
	}
}

func TestSelector_SkipsModelWithoutMetric(t *testing.T) {
	wh := bqtest.New().
		AddModel(model("audience_1", 2*time.Hour), bq.Evaluation{DaviesBouldinIndex: new(0.3)}).
		AddModel(model("audience_2", time.Hour), bq.Evaluation{MeanSquaredDistance: new(1.2)})

	got, err := newSelector(wh).Execute(context.Background(), selectRequest())
	if err != nil || got.ModelID != "audience_1" {
		t.Fatalf("expected audience_1, got %v (%v)", got, err)
	}
}

func TestSelector_RejectsNonFiniteThreshold(t *testing.T) {
	for _, threshold := range []float64{math.NaN(), math.Inf(1)} {
		wh := bqtest.New().AddModel(model("audience_1", time.Hour), bq.Evaluation{DaviesBouldinIndex: new(99.0)})
		req := selectRequest()
		req.Threshold = threshold
		got, err := newSelector(wh).Execute(context.Background(), req)
		if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
			t.Fatalf("threshold %v: expected INVALID_INPUT, got %v (%v)", threshold, got, err)
		}
	}
}

func TestSelector_RetriesListing(t *testing.T) {
	wh := bqtest.New().AddModel(model("audience_1", time.Hour), bq.Evaluation{DaviesBouldinIndex: new(0.1)})
	wh.ListErr = errors.ServiceUnavailable("bigquery")
	wh.ListErrTimes = 2

	if _, err := newSelector(wh).Execute(context.Background(), selectRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wh.ListCalls() != 3 {
		t.Fatalf("expected 3 listing attempts, got %d", wh.ListCalls())
	}
}

func TestSelector_RejectsUnknownMetric(t *testing.T) {
	req := selectRequest()
	req.Metric = "foo"
	_, err := newSelector(bqtest.New()).Execute(context.Background(), req)
	if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestMostRecent(t *testing.T) {
	models := []bq.ModelInfo{model("a", 3*time.Hour), model("b", time.Hour), model("c", 2*time.Hour)}
	got := bq.MostRecent(models, 2)
	if len(got) != 2 || got[0].Ref.ModelID != "b" || got[1].Ref.ModelID != "c" {
		t.Fatalf("unexpected %v", got)
	}
	if models[0].Ref.ModelID != "a" {
		t.Fatal("input reordered")
	}
}

func TestPredictor(t *testing.T) {
	wh := bqtest.New()
	m := bq.ModelRef{ProjectID: "my-project", DatasetID: "segmentation", ModelID: "audience_1"}
	dest, err := bq.NewPredictor(wh, clock).Execute(context.Background(), bq.PredictRequest{
		Model:             m,
		ProjectID:         "my-project",
		Source:            "my-project.feature_store.users",
		DestinationPrefix: "preds_",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := bq.TableRef{ProjectID: "my-project", DatasetID: "feature_store", TableID: "preds_20240102_030405"}
	if diff := cmp.Diff(want, dest); diff != "" {
		t.Fatalf("destination mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(dest.TableID, "preds_") {
		t.Fatalf("destination %s does not derive from prefix", dest)
	}
	if jobs := wh.Jobs(); len(jobs) != 1 || !strings.Contains(jobs[0].SQL, m.String()) {
		t.Fatalf("expected the elected model in the predict job, got %+v", jobs)
	}
}

func TestDestinationTable(t *testing.T) {
	src := bq.TableRef{ProjectID: "p-source", DatasetID: "src_ds", TableID: "users"}
	tests := []struct {
		prefix string
		want   string
	}{
		{"preds_", "p-source.src_ds.preds_20240102_030405"},
		{"out.preds_", "p-source.out.preds_20240102_030405"},
		{"other-proj.out.preds_", "other-proj.out.preds_20240102_030405"},
	}
	for _, tc := range tests {
		t.Run(tc.prefix, func(t *testing.T) {
			got, err := bq.DestinationTable(tc.prefix, src, fixedNow)
			if err != nil || got.String() != tc.want {
				t.Fatalf("expected %s, got %s (%v)", tc.want, got, err)
			}
		})
	}
	if _, err := bq.DestinationTable("bad-prefix", src, fixedNow); err == nil {
		t.Fatal("expected error for invalid prefix")
	}
}

func TestFlattener(t *testing.T) {
	wh := bqtest.New()
	src := bq.TableRef{ProjectID: "my-project", DatasetID: "feature_store", TableID: "preds_20240102_030405"}
	dest, err := bq.NewFlattener(wh).Execute(context.Background(), bq.FlattenRequest{ProjectID: "my-project", Source: src})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.String() != "my-project.feature_store.preds_20240102_030405_view" {
		t.Fatalf("unexpected destination %s", dest)
	}
	if _, err := bq.NewFlattener(wh).Execute(context.Background(), bq.FlattenRequest{}); errors.CodeOf(err) != errors.ErrCodeMissingField {
		t.Fatalf("expected MISSING_FIELD, got %v", err)
	}
}
