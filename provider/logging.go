package provider

import (
	"context"
	"time"

	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/logger"
)

// WithLogging logs every call with its duration. Failures carry the error
// code; retryable ones are logged as warnings since a retry usually follows.
func WithLogging[I, O any](log *logger.Logger) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &logged[I, O]{inner: inner, log: log}
	}
}

type logged[I, O any] struct {
	inner RequestResponse[I, O]
	log   *logger.Logger
}

func (l *logged[I, O]) Name() string                         { return l.inner.Name() }
func (l *logged[I, O]) IsAvailable(ctx context.Context) bool { return l.inner.IsAvailable(ctx) }

func (l *logged[I, O]) Execute(ctx context.Context, input I) (O, error) {
	start := time.Now()
	output, err := l.inner.Execute(ctx, input)

	fields := logger.DurationFields(l.inner.Name(), time.Since(start))
	log := l.log.WithContext(ctx)
	switch {
	case err == nil:
		log.Debug("provider execute ok", fields)
	case errors.IsRetryable(err):
		fields[logger.FieldCode] = string(errors.CodeOf(err))
		fields[logger.FieldError] = err.Error()
		log.Warn("provider execute failed", fields)
	default:
		fields[logger.FieldCode] = string(errors.CodeOf(err))
		fields[logger.FieldError] = err.Error()
		log.Error("provider execute failed", fields)
	}
	return output, err
}
