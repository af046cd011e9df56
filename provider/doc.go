// Package provider defines the typed operation contracts pipeline
// components are built from.
//
//   - RequestResponse[I, O]: one input, one output (a BigQuery job, a
//     query, a publish returning its receipt)
//
// Middleware[I, O] wraps a RequestResponse with cross-cutting behavior.
// Use Chain to compose them; the first middleware is outermost:
//
//	trainer := provider.Chain(
//	    provider.WithLogging[bq.TrainRequest, bq.ModelRef](log),
//	    provider.WithTracing[bq.TrainRequest, bq.ModelRef]("bigquery"),
//	    provider.WithRetry[bq.TrainRequest, bq.ModelRef](resilience.DefaultRetryConfig()),
//	)(bq.NewTrainer(warehouse, clock))
//
// Registry holds named factories so a backend can be chosen from
// configuration, for example the activation transport.
package provider
