package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

// Analysis errors.
const (
	CodeAnalysisNotFound      Code = "ANALYSIS_NOT_FOUND"
	CodeInvalidRunID          Code = "INVALID_RUN_ID"
	CodeInvalidTree           Code = "INVALID_TREE"
	CodeReportTooLarge        Code = "REPORT_TOO_LARGE"
	CodeReportUploadFailed    Code = "REPORT_UPLOAD_FAILED"
	CodeAnalysisCreateFailed  Code = "ANALYSIS_CREATE_FAILED"
	CodeAnalysisEnqueueFailed Code = "ANALYSIS_ENQUEUE_FAILED"
)

// Health errors.
const (
	CodeDatabaseNotReady Code = "DATABASE_NOT_READY"
)
