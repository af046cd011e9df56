package provider

import "context"

// Adapt exposes a backend operation of type [BI, BO] as a domain operation
// of type [I, O]. mapIn builds the backend request and mapOut converts the
// backend result; an error from either is returned as is.
func Adapt[I, O, BI, BO any](
	inner RequestResponse[BI, BO],
	name string,
	mapIn func(ctx context.Context, input I) (BI, error),
	mapOut func(output BO) (O, error),
) RequestResponse[I, O] {
	return &adapted[I, O, BI, BO]{inner: inner, name: name, mapIn: mapIn, mapOut: mapOut}
}

// AdaptInput is Adapt for operations that only translate their request.
func AdaptInput[I, BI, O any](
	inner RequestResponse[BI, O],
	name string,
	mapIn func(ctx context.Context, input I) (BI, error),
) RequestResponse[I, O] {
	return Adapt(inner, name, mapIn, func(out O) (O, error) { return out, nil })
}

type adapted[I, O, BI, BO any] struct {
	inner  RequestResponse[BI, BO]
	name   string
	mapIn  func(ctx context.Context, input I) (BI, error)
	mapOut func(output BO) (O, error)
}

func (a *adapted[I, O, BI, BO]) Name() string { return a.name }

func (a *adapted[I, O, BI, BO]) IsAvailable(ctx context.Context) bool {
	return a.inner.IsAvailable(ctx)
}

func (a *adapted[I, O, BI, BO]) Execute(ctx context.Context, input I) (O, error) {
	var zero O
	req, err := a.mapIn(ctx, input)
	if err != nil {
		return zero, err
	}
	out, err := a.inner.Execute(ctx, req)
	if err != nil {
		return zero, err
	}
	return a.mapOut(out)
}
