// Package errors provides the structured error type shared by pipeline
// definitions, components and the execution engine. Every failure carries
// a machine-readable code, a retryable flag and optional details so the
// CLI and the engine can classify it without string matching.
package errors
