package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates a managed service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Input and definition errors
const (
	// ErrCodeInvalidInput indicates a parameter or node input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a field has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	// ErrCodeInvalidGraph indicates the pipeline wiring is invalid.
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"
	// ErrCodeNotFound indicates a referenced resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Execution errors
const (
	// ErrCodeNoQualifyingModel indicates no candidate model met the selection criteria.
	ErrCodeNoQualifyingModel ErrorCode = "NO_QUALIFYING_MODEL"
	// ErrCodeJobFailed indicates an external job (training, prediction, query) failed.
	ErrCodeJobFailed ErrorCode = "JOB_FAILED"
	// ErrCodePublishFailed indicates an activation message could not be published.
	ErrCodePublishFailed ErrorCode = "PUBLISH_FAILED"
	// ErrCodeUpstreamFailed indicates a node was skipped because a dependency failed.
	ErrCodeUpstreamFailed ErrorCode = "UPSTREAM_FAILED"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodePublishFailed:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
