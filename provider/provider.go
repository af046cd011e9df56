package provider

import "context"

// Provider is implemented by every backend an operation can run against.
type Provider interface {
	// Name identifies the backend in logs, spans and errors.
	Name() string
	// IsAvailable reports whether the backend can take requests now.
	IsAvailable(ctx context.Context) bool
}

// Factory builds a provider from raw settings, typically a config section
// decoded into a map.
type Factory[T Provider] func(settings map[string]any) (T, error)
