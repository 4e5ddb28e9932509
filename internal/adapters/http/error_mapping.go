package httpadapter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/infrastructure/resilience"
)

const (
	unsupportedFormatDetail = "Unsupported file format. Please upload PDF or Image."
	unavailableDetail       = "service temporarily unavailable, try again later"
	internalErrorDetail     = "internal server error"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrLicenseNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary), resilience.IsCircuitOpen(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorDetail is the operator-facing message for err. Internal failures are
// not echoed back to the caller.
func errorDetail(err error, status int) string {
	switch {
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return unsupportedFormatDetail
	case status == http.StatusServiceUnavailable:
		return unavailableDetail
	case status >= 500:
		return internalErrorDetail
	}

	var detailed domain.DetailedError
	if errors.As(err, &detailed) {
		if detail := strings.TrimSpace(detailed.Detail()); detail != "" {
			return detail
		}
	}
	if status == http.StatusNotFound {
		return domain.ErrLicenseNotFound.Error()
	}
	return err.Error()
}
