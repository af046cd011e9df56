package segmentation

import (
	"context"
	stderrors "errors"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/kbukum/segmentation/activation"
	"github.com/kbukum/segmentation/bq"
	"github.com/kbukum/segmentation/bq/bqtest"
	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/errors"
)

func TestPipelines_WireOnlyEarlierNodes(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := Lookup(name)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if err := Check(p); err != nil {
				t.Fatalf("check: %v", err)
			}
			position := map[string]int{}
			for i, n := range p.Nodes {
				position[n.Name] = i
			}
			for i, n := range p.Nodes {
				for _, up := range n.Upstream() {
					if position[up] >= i {
						t.Errorf("node %q reads from %q, which is not declared earlier", n.Name, up)
					}
				}
			}
		})
	}
}

func TestCheck_RejectsBadWiring(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *dag.Pipeline)
	}{
		{"self", func(p *dag.Pipeline) {
			p.Nodes[1].Inputs["model"] = dag.Input{Type: dag.TypeModel, Node: NodePredict, Output: "destination_table"}
		}},
		{"forward", func(p *dag.Pipeline) {
			p.Nodes[1].Inputs["model"] = dag.Input{Type: dag.TypeModel, Node: NodeFlatten, Output: "destination_table"}
		}},
		{"reordered", func(p *dag.Pipeline) {
			p.Nodes[2], p.Nodes[3] = p.Nodes[3], p.Nodes[2]
		}},
		{"type mismatch", func(p *dag.Pipeline) {
			p.Nodes[3].Inputs["predictions_table"] = dag.Input{Type: dag.TypeTable, Node: NodeSelect, Output: "elected_model"}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := PredictionPipeline()
			tc.mutate(p)
			if err := Check(p); errors.CodeOf(err) != errors.ErrCodeInvalidGraph {
				t.Fatalf("expected INVALID_GRAPH, got %v", err)
			}
		})
	}
}

func TestCheck_RejectsUnknownComponentInput(t *testing.T) {
	p := TrainingPipeline()
	p.Nodes[0].Inputs["km_max_interations"] = p.Nodes[0].Inputs["km_max_iterations"]
	if err := Check(p); err == nil {
		t.Fatal("expected an input unknown to the component to be rejected")
	}
}

func TestTrainingPipeline_TrainsThenEvaluates(t *testing.T) {
	trained := modelRef("segmentation_model_" + strconv.FormatInt(fixedNow.Unix(), 10))
	wh := &recordingWarehouse{Warehouse: bqtest.New()}
	wh.AddModel(bq.ModelInfo{Ref: trained, Created: fixedNow}, bq.Evaluation{DaviesBouldinIndex: new(0.42), MeanSquaredDistance: new(3.5)})

	run, err := Execute(context.Background(), testRunner(testComponents(wh, nil)), TrainingPipeline(), trainingParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := run.Result.Completed(), []string{NodeTrain, NodeEvaluate}; !reflect.DeepEqual(got, want) {
		t.Fatalf("completed %v, want %v", got, want)
	}
	if got, want := wh.Calls(), []string{"exec:train", "evaluate:" + trained.ModelID}; !reflect.DeepEqual(got, want) {
		t.Fatalf("warehouse calls %v, want %v", got, want)
	}
	if got := run.Result.NodeResults[NodeTrain].Output; got != trained {
		t.Errorf("trained model %v, want %v", got, trained)
	}
	metrics, ok := run.Result.NodeResults[NodeEvaluate].Output.(bq.Evaluation)
	if !ok || metrics.Model != trained || *metrics.DaviesBouldinIndex != 0.42 {
		t.Errorf("unexpected metrics %+v", run.Result.NodeResults[NodeEvaluate].Output)
	}

	sql := wh.Jobs()[0].SQL
	for _, want := range []string{"segmentation.segmentation_model_", "EXCEPT(`user_id`)", "feature_store.users"} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in training statement:\n%s", want, sql)
		}
	}
}

func TestTrainingPipeline_EvaluateSkippedWhenTrainingFails(t *testing.T) {
	wh := &recordingWarehouse{Warehouse: bqtest.New()}
	wh.ExecErr = func(bq.Job) error { return stderrors.New("quota exceeded") }

	run, err := Execute(context.Background(), testRunner(testComponents(wh, nil)), TrainingPipeline(), trainingParams())
	if errors.CodeOf(err) != errors.ErrCodeJobFailed {
		t.Fatalf("expected JOB_FAILED, got %v", err)
	}
	if run == nil {
		t.Fatal("expected a run record")
	}
	eval := run.Result.NodeResults[NodeEvaluate]
	if eval.Status != dag.StatusSkipped || errors.CodeOf(eval.Error) != errors.ErrCodeUpstreamFailed {
		t.Fatalf("expected evaluate skipped with UPSTREAM_FAILED, got %+v", eval)
	}
	for _, call := range wh.Calls() {
		if strings.HasPrefix(call, "evaluate:") {
			t.Fatalf("evaluate ran after a failed training: %v", wh.Calls())
		}
	}
}

func TestPredictionPipeline_RunsInOrder(t *testing.T) {
	wh := seededWarehouse()
	pub := &fakePublisher{}

	run, err := Execute(context.Background(), testRunner(testComponents(wh, pub)), PredictionPipeline(), predictionParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := []string{NodeSelect, NodePredict, NodeFlatten, NodeActivate}
	if !reflect.DeepEqual(run.Result.Order, order) || !reflect.DeepEqual(run.Result.Completed(), order) {
		t.Fatalf("order %v completed %v, want %v", run.Result.Order, run.Result.Completed(), order)
	}

	elected := modelRef("segmentation_model_2")
	if got := run.Result.NodeResults[NodeSelect].Output; got != elected {
		t.Fatalf("elected %v, want %v", got, elected)
	}

	jobs := wh.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected predict and flatten jobs, got %d", len(jobs))
	}
	if !strings.Contains(jobs[0].SQL, "ML.PREDICT(MODEL `my-project.segmentation.segmentation_model_2`") {
		t.Errorf("predict did not use the elected model:\n%s", jobs[0].SQL)
	}

	predictions := bq.TableRef{ProjectID: "my-project", DatasetID: "feature_store", TableID: "preds_20240102_030405"}
	if got := run.Result.NodeResults[NodePredict].Output; got != predictions {
		t.Errorf("predictions table %v, want %v", got, predictions)
	}
	flattened := bq.FlattenedTable(predictions)
	if got := run.Result.NodeResults[NodeFlatten].Output; got != flattened {
		t.Errorf("flattened table %v, want %v", got, flattened)
	}

	pubs := pub.publications()
	if len(pubs) != 1 {
		t.Fatalf("expected one publication, got %d", len(pubs))
	}
	want := activation.Message{ActivationType: "purchase-propensity", PredictionsTable: flattened.String()}
	if pubs[0].Message != want || pubs[0].Topic != "activations" || pubs[0].ProjectID != "my-project" {
		t.Errorf("unexpected publication %+v", pubs[0])
	}
	receipt, ok := run.Result.NodeResults[NodeActivate].Output.(activation.Receipt)
	if !ok || receipt.MessageID != "msg-1" {
		t.Errorf("unexpected receipt %+v", run.Result.NodeResults[NodeActivate].Output)
	}
}

func TestPredictionPipeline_DestinationPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   bq.TableRef
	}{
		{"preds_", bq.TableRef{ProjectID: "my-project", DatasetID: "feature_store", TableID: "preds_20240102_030405"}},
		{"scores.preds_", bq.TableRef{ProjectID: "my-project", DatasetID: "scores", TableID: "preds_20240102_030405"}},
		{"other-project.scores.p", bq.TableRef{ProjectID: "other-project", DatasetID: "scores", TableID: "p20240102_030405"}},
	}
	for _, tc := range tests {
		t.Run(tc.prefix, func(t *testing.T) {
			params := predictionParams()
			params.DestinationPrefix = tc.prefix
			run, err := Execute(context.Background(), testRunner(testComponents(seededWarehouse(), &fakePublisher{})), PredictionPipeline(), params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, _ := run.Result.NodeResults[NodePredict].Output.(bq.TableRef)
			if got != tc.want {
				t.Fatalf("destination %v, want %v", got, tc.want)
			}
			last := strings.Split(tc.prefix, ".")
			if !strings.HasPrefix(got.TableID, last[len(last)-1]) {
				t.Fatalf("table id %q does not start with the prefix", got.TableID)
			}
		})
	}
}

func TestPredictionPipeline_NoQualifyingModel(t *testing.T) {
	wh := seededWarehouse()
	pub := &fakePublisher{}
	params := predictionParams()
	params.MetricThreshold = 0.2

	run, err := Execute(context.Background(), testRunner(testComponents(wh, pub)), PredictionPipeline(), params)
	if errors.CodeOf(err) != errors.ErrCodeNoQualifyingModel {
		t.Fatalf("expected NO_QUALIFYING_MODEL, got %v", err)
	}
	for _, name := range []string{NodePredict, NodeFlatten, NodeActivate} {
		if nr := run.Result.NodeResults[name]; nr.Status != dag.StatusSkipped {
			t.Errorf("expected %s skipped, got %s", name, nr.Status)
		}
	}
	if len(wh.Jobs()) != 0 || len(pub.publications()) != 0 {
		t.Fatalf("expected no jobs and no publications, got %d jobs and %d publications", len(wh.Jobs()), len(pub.publications()))
	}
}

func TestPredictionPipeline_PublishFailureFailsActivate(t *testing.T) {
	pub := &fakePublisher{err: errors.PublishFailed("activations", stderrors.New("unavailable"))}

	run, err := Execute(context.Background(), testRunner(testComponents(seededWarehouse(), pub)), PredictionPipeline(), predictionParams())
	if errors.CodeOf(err) != errors.ErrCodePublishFailed {
		t.Fatalf("expected PUBLISH_FAILED, got %v", err)
	}
	if got := len(pub.publications()); got != fastRetry.MaxAttempts {
		t.Errorf("expected %d attempts, got %d", fastRetry.MaxAttempts, got)
	}
	if got := run.Result.Completed(); !reflect.DeepEqual(got, []string{NodeSelect, NodePredict, NodeFlatten}) {
		t.Errorf("unexpected completed nodes %v", got)
	}
}

func TestExecute_RejectsInvalidParams(t *testing.T) {
	params := predictionParams()
	params.MetricName = "foo"
	_, err := Execute(context.Background(), testRunner(testComponents(seededWarehouse(), &fakePublisher{})), PredictionPipeline(), params)
	if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestComponents_MissingBackends(t *testing.T) {
	runner := testRunner(Components{})
	if _, err := Execute(context.Background(), runner, PredictionPipeline(), predictionParams()); err == nil {
		t.Fatal("expected an error without a warehouse")
	}
}

func TestLookup(t *testing.T) {
	if got, want := Names(), []string{PredictionPipelineName, TrainingPipelineName}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names %v, want %v", got, want)
	}
	p, err := Lookup(TrainingPipelineName)
	if err != nil || p.Name != TrainingPipelineName {
		t.Fatalf("unexpected lookup %v, %v", p, err)
	}
	if _, err := Lookup("nope"); errors.CodeOf(err) != errors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestPredictionPipeline_SelectDisplayName(t *testing.T) {
	n, ok := PredictionPipeline().Node(NodeSelect)
	if !ok || n.Title() != "elect_latest_model" {
		t.Fatalf("unexpected select node %+v", n)
	}
}
