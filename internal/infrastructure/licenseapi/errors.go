package licenseapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/leave-intake/internal/infrastructure/resilience"
)

// APIError is a non-2xx answer from the intake API. Detail carries the
// server's "detail" message when the body had one.
type APIError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	detail     string
}

func (e *APIError) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("%s status: %s: %s", e.Operation, e.Status, e.detail)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s status: %s: %s", e.Operation, e.Status, e.Body)
	}
	return fmt.Sprintf("%s status: %s", e.Operation, e.Status)
}

func (e *APIError) Detail() string {
	return e.detail
}

func newAPIError(operation string, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(raw))
	return &APIError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
		detail:     detailFromBody(raw),
	}
}

// detailFromBody reads {"detail": "..."}. FastAPI-style validation errors put a
// list there; the first message is used.
func detailFromBody(raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		return strings.TrimSpace(items[0].Msg)
	}
	return ""
}

// classifyAPIError never marks anything retryable: a retry is always an
// operator decision. Client errors do not count against the breaker.
func classifyAPIError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{RecordFailure: false}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return resilience.ErrorClassification{RecordFailure: apiErr.StatusCode >= 500}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}
