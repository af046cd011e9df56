package provider

import (
	"context"
	"errors"

	apperrors "github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/resilience"
)

// WithRetry returns a Middleware that retries Execute with exponential backoff.
// Only errors accepted by cfg.RetryIf (default: retryable AppErrors and
// errors of unknown origin) are retried.
func WithRetry[I, O any](cfg resilience.RetryConfig) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &retryRR[I, O]{inner: inner, cfg: cfg}
	}
}

type retryRR[I, O any] struct {
	inner RequestResponse[I, O]
	cfg   resilience.RetryConfig
}

func (r *retryRR[I, O]) Name() string                         { return r.inner.Name() }
func (r *retryRR[I, O]) IsAvailable(ctx context.Context) bool { return r.inner.IsAvailable(ctx) }

func (r *retryRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return resilience.Retry(ctx, r.cfg, func() (O, error) {
		return r.inner.Execute(ctx, input)
	})
}

// WithBulkhead returns a Middleware that runs Execute inside b.
// Several providers may share one bulkhead to bound calls to a common backend.
func WithBulkhead[I, O any](b *resilience.Bulkhead) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &bulkheadRR[I, O]{inner: inner, bh: b}
	}
}

type bulkheadRR[I, O any] struct {
	inner RequestResponse[I, O]
	bh    *resilience.Bulkhead
}

func (b *bulkheadRR[I, O]) Name() string                         { return b.inner.Name() }
func (b *bulkheadRR[I, O]) IsAvailable(ctx context.Context) bool { return b.inner.IsAvailable(ctx) }

func (b *bulkheadRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	out, err := resilience.ExecuteWithResult(ctx, b.bh, func() (O, error) {
		return b.inner.Execute(ctx, input)
	})
	return out, wrapResilienceError(b.inner.Name(), err)
}

// wrapResilienceError converts resilience sentinel errors to AppErrors.
func wrapResilienceError(name string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, resilience.ErrBulkheadTimeout):
		return apperrors.ServiceUnavailable(name).
			WithCause(err).
			WithDetail("reason", "concurrency limit reached")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout(name).WithCause(err)
	default:
		return err
	}
}
