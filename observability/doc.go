// Package observability provides OpenTelemetry tracing and metrics for
// pipeline runs.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("segmentation"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "pipeline.predict")
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("segmentation"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("segmentation"))
//	metrics.RecordNode(ctx, "prediction-pipeline", "predict", "completed", duration)
//
// Health:
//
//	health := observability.NewServiceHealth("segmentation", version.GetShortVersion())
//	health.AddComponent(observability.Health{Name: "bigquery", Status: observability.HealthStatusUp})
package observability
