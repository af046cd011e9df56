package provider

// Middleware wraps an operation with logging, tracing, retries and the like.
type Middleware[I, O any] func(RequestResponse[I, O]) RequestResponse[I, O]

// Chain composes middlewares; the first one is outermost, so
// Chain(a, b)(op) is a(b(op)). An empty chain returns op unchanged.
func Chain[I, O any](middlewares ...Middleware[I, O]) Middleware[I, O] {
	return func(op RequestResponse[I, O]) RequestResponse[I, O] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] != nil {
				op = middlewares[i](op)
			}
		}
		return op
	}
}
