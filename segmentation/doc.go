// Package segmentation defines the k-means segmentation pipelines.
//
// TrainingPipeline trains a BigQuery ML k-means model and evaluates it.
// PredictionPipeline elects the best recent model, scores a table with it,
// flattens the prediction table and publishes an activation message naming
// the result. Both are dag.Pipeline documents: Compile binds parameters and
// renders the document for an orchestrator, and Service runs them locally
// against BigQuery and the configured activation transport.
package segmentation
