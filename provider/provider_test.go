package provider_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/provider"
	"github.com/kbukum/segmentation/resilience"
)

type orderTracker struct {
	inner provider.RequestResponse[string, string]
	tag   string
	order *[]string
}

func (o *orderTracker) Name() string                         { return o.inner.Name() }
func (o *orderTracker) IsAvailable(ctx context.Context) bool { return o.inner.IsAvailable(ctx) }
func (o *orderTracker) Execute(ctx context.Context, in string) (string, error) {
	*o.order = append(*o.order, o.tag+">")
	out, err := o.inner.Execute(ctx, in)
	*o.order = append(*o.order, "<"+o.tag)
	return out, err
}

func echo() provider.RequestResponse[string, string] {
	return provider.Func("echo", func(_ context.Context, in string) (string, error) {
		return "echo:" + in, nil
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(tag string) provider.Middleware[string, string] {
		return func(inner provider.RequestResponse[string, string]) provider.RequestResponse[string, string] {
			return &orderTracker{inner: inner, tag: tag, order: &order}
		}
	}

	wrapped := provider.Chain(mw("A"), mw("B"))(echo())
	out, err := wrapped.Execute(context.Background(), "x")
	if err != nil || out != "echo:x" {
		t.Fatalf("unexpected result %q, %v", out, err)
	}
	want := []string{"A>", "B>", "<B", "<A"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, order)
	}
	if wrapped.Name() != "echo" {
		t.Errorf("expected name to pass through, got %q", wrapped.Name())
	}
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "segmentation", &buf)

	failing := provider.Func("predict", func(_ context.Context, _ string) (string, error) {
		return "", errors.New("table not found")
	})
	_, _ = provider.WithLogging[string, string](log)(failing).Execute(context.Background(), "x")

	out := buf.String()
	if !strings.Contains(out, "provider execute failed") || !strings.Contains(out, "table not found") {
		t.Errorf("expected failure log, got %q", out)
	}
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"code":"INTERNAL_ERROR"`) {
		t.Errorf("expected a terminal error with its code, got %q", out)
	}

	buf.Reset()
	busy := provider.Func("publish", func(_ context.Context, _ string) (string, error) {
		return "", apperrors.ServiceUnavailable("pubsub")
	})
	_, _ = provider.WithLogging[string, string](log)(busy).Execute(context.Background(), "x")
	if out := buf.String(); !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected a retryable failure to be a warning, got %q", out)
	}
}

func TestAdapt(t *testing.T) {
	type request struct{ Table string }
	adapted := provider.Adapt[request, int, string, string](
		echo(),
		"length",
		func(_ context.Context, in request) (string, error) { return in.Table, nil },
		func(out string) (int, error) { return len(out), nil },
	)
	n, err := adapted.Execute(context.Background(), request{Table: "ds.preds"})
	if err != nil || n != len("echo:ds.preds") {
		t.Fatalf("unexpected %d, %v", n, err)
	}
	if adapted.Name() != "length" {
		t.Errorf("expected adapted name, got %q", adapted.Name())
	}

	failing := provider.Adapt[request, int, string, string](
		echo(), "length",
		func(_ context.Context, in request) (string, error) { return "", apperrors.MissingField("table") },
		func(out string) (int, error) { return len(out), nil },
	)
	if _, err := failing.Execute(context.Background(), request{}); apperrors.CodeOf(err) != apperrors.ErrCodeMissingField {
		t.Errorf("expected mapIn error, got %v", err)
	}

	passthrough := provider.AdaptInput[request, string, string](echo(), "table",
		func(_ context.Context, in request) (string, error) { return in.Table, nil },
	)
	if out, err := passthrough.Execute(context.Background(), request{Table: "ds.t"}); err != nil || out != "echo:ds.t" {
		t.Fatalf("unexpected %q, %v", out, err)
	}
}

func TestWithRetry(t *testing.T) {
	calls := 0
	flaky := provider.Func("list-models", func(_ context.Context, _ string) (string, error) {
		calls++
		if calls < 2 {
			return "", apperrors.ServiceUnavailable("bigquery")
		}
		return "ok", nil
	})
	cfg := resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	out, err := provider.WithRetry[string, string](cfg)(flaky).Execute(context.Background(), "")
	if err != nil || out != "ok" || calls != 2 {
		t.Fatalf("expected ok after 2 calls, got %q, %v, %d", out, err, calls)
	}
}

func TestWithBulkhead_Timeout(t *testing.T) {
	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "bigquery", MaxConcurrent: 1, MaxWait: 5 * time.Millisecond})
	started := make(chan struct{})
	release := make(chan struct{})
	slow := provider.Func("evaluate", func(_ context.Context, _ string) (string, error) {
		close(started)
		<-release
		return "", nil
	})
	wrapped := provider.WithBulkhead[string, string](bh)(slow)
	go func() { _, _ = wrapped.Execute(context.Background(), "") }()
	<-started
	defer close(release)

	_, err := provider.WithBulkhead[string, string](bh)(echo()).Execute(context.Background(), "")
	if apperrors.CodeOf(err) != apperrors.ErrCodeServiceUnavailable {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
}

type flakyPublisher struct {
	calls int
	fail  int
}

func (s *flakyPublisher) Name() string                       { return "pubsub" }
func (s *flakyPublisher) IsAvailable(_ context.Context) bool { return true }
func (s *flakyPublisher) Execute(_ context.Context, msg string) (string, error) {
	s.calls++
	if s.calls <= s.fail {
		return "", apperrors.PublishFailed("segments", errors.New("unavailable"))
	}
	return "id-" + msg, nil
}

func TestWithRetry_PublishFailedIsRetried(t *testing.T) {
	pub := &flakyPublisher{fail: 2}
	cfg := resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	id, err := provider.WithRetry[string, string](cfg)(pub).Execute(context.Background(), "msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "id-msg" || pub.calls != 3 {
		t.Errorf("expected id-msg after 3 calls, got %q after %d", id, pub.calls)
	}
}

func TestRegistry(t *testing.T) {
	reg := provider.NewRegistry[provider.RequestResponse[string, string]]()
	reg.RegisterFactory("pubsub", func(cfg map[string]any) (provider.RequestResponse[string, string], error) {
		return &flakyPublisher{}, nil
	})
	reg.RegisterFactory("kafka", func(cfg map[string]any) (provider.RequestResponse[string, string], error) {
		return nil, errors.New("no brokers")
	})

	if got := reg.List(); len(got) != 2 || got[0] != "kafka" || got[1] != "pubsub" {
		t.Errorf("expected sorted names, got %v", got)
	}
	s, err := reg.Create("pubsub", nil)
	if err != nil || s.Name() != "pubsub" {
		t.Fatalf("unexpected %v, %v", s, err)
	}
	if _, err := reg.Create("kafka", nil); err == nil {
		t.Error("expected factory error")
	}
	if _, err := reg.Create("sqs", nil); apperrors.CodeOf(err) != apperrors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND for an unregistered name, got %v", err)
	}
	if !reg.Has("kafka") || reg.Has("sqs") {
		t.Error("unexpected Has result")
	}
}
