package apierr

import "net/http"

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

// --- Analysis ---

func AnalysisNotFound() *Error {
	return New(CodeAnalysisNotFound, http.StatusNotFound, "Analysis not found")
}

func InvalidRunID() *Error {
	return New(CodeInvalidRunID, http.StatusBadRequest, "Invalid run ID")
}

// InvalidTree reports a component tree that fails validation. The validation
// failure is returned to the client as the "reason" detail.
func InvalidTree(cause error) *Error {
	return Wrap(CodeInvalidTree, http.StatusUnprocessableEntity, "Invalid component tree", cause).
		WithDetail("reason", cause.Error())
}

func ReportTooLarge() *Error {
	return New(CodeReportTooLarge, http.StatusRequestEntityTooLarge, "Component tree exceeds the maximum report size")
}

func ReportUploadFailed(cause error) *Error {
	return Wrap(CodeReportUploadFailed, http.StatusBadGateway, "Failed to store component tree", cause)
}

func AnalysisCreateFailed(cause error) *Error {
	return Wrap(CodeAnalysisCreateFailed, http.StatusInternalServerError, "Failed to create analysis run", cause)
}

func AnalysisEnqueueFailed(cause error) *Error {
	return Wrap(CodeAnalysisEnqueueFailed, http.StatusServiceUnavailable, "Failed to enqueue analysis", cause)
}

// --- Health ---

func DatabaseNotReady() *Error {
	return New(CodeDatabaseNotReady, http.StatusServiceUnavailable, "database not ready")
}
