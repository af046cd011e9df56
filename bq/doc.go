// Package bq implements the BigQuery ML operations behind the segmentation
// pipelines: training a k-means model, evaluating it, electing the best
// recent model, running batch predictions and flattening their output.
//
// Operations are providers (provider.RequestResponse) over a Warehouse.
// Client is the Warehouse backed by cloud.google.com/go/bigquery; tests use
// an in-memory fake.
package bq
