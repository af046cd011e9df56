// Package component defines lifecycle-managed infrastructure clients.
//
// The BigQuery client and the activation publishers are components: the
// command line registers them, starts them in registration order before a
// pipeline runs, and stops them in reverse order afterwards.
package component
