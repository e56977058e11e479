package handler

import (
	"errors"
	"net/http"

	"github.com/maraichr/ceindex/internal/report"
	"github.com/maraichr/ceindex/pkg/apierr"
	"github.com/maraichr/ceindex/pkg/models"
)

var treeViolations = []error{
	models.ErrInvalidRootType,
	models.ErrEmptyUUID,
	models.ErrDuplicateUUID,
	models.ErrCycle,
	models.ErrUnknownType,
}

// reportError maps a failure to decode a submitted tree to its API error.
func reportError(err error) *apierr.Error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, report.ErrReportTooLarge) {
		return apierr.ReportTooLarge()
	}
	for _, v := range treeViolations {
		if errors.Is(err, v) {
			return apierr.InvalidTree(err)
		}
	}
	return apierr.InvalidRequestBody()
}
