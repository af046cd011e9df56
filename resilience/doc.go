// Package resilience provides retry with exponential backoff and a bulkhead
// for bounding concurrent calls to a shared backend.
//
//	jobs := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "bigquery", MaxConcurrent: 4})
//	err := jobs.Execute(ctx, func() error {
//	    return resilience.RetryFunc(ctx, resilience.DefaultRetryConfig(), submit)
//	})
package resilience
