package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, msg)
	}
	return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
}

// Message is Ollama's {"error": ...} text, or the raw body when it is not JSON.
func (e *HTTPStatusError) Message() string {
	body := strings.TrimSpace(e.Body)
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return body
}

// unreadableDocument is what the operator sees when the model refuses the input.
type unreadableDocument struct {
	cause error
}

func (e *unreadableDocument) Error() string {
	return "model could not read the document: " + e.cause.Error()
}

func (e *unreadableDocument) Detail() string {
	return "The document could not be read. Upload a clearer photo or the original PDF."
}

func (e *unreadableDocument) Is(target error) bool { return target == domain.ErrInvalidInput }

func (e *unreadableDocument) Unwrap() error { return e.cause }

type failureKind int

const (
	failureCanceled failureKind = iota
	// failureUnavailable covers Ollama being down, overloaded or still loading a model.
	failureUnavailable
	// failureRejected means the model refused this document.
	failureRejected
	// failureMisconfigured covers a missing model or an unknown endpoint.
	failureMisconfigured
	failureUnknown
)

func classifyFailure(err error) failureKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return failureCanceled
	}
	if resilience.IsCircuitOpen(err) {
		return failureUnavailable
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusBadRequest, statusErr.StatusCode == http.StatusUnprocessableEntity:
			return failureRejected
		case statusErr.StatusCode == http.StatusNotFound:
			return failureMisconfigured
		case statusErr.StatusCode == http.StatusTooManyRequests, statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode >= 500:
			return failureUnavailable
		default:
			return failureMisconfigured
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return failureUnavailable
	}
	return failureUnknown
}

// classifyOllamaError feeds the breaker; it never asks for a retry.
func classifyOllamaError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	switch classifyFailure(err) {
	case failureCanceled, failureRejected:
		return resilience.ErrorClassification{RecordFailure: false}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func toDomainError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch classifyFailure(err) {
	case failureUnavailable:
		if domain.IsKind(err, domain.ErrTemporary) {
			return err
		}
		return domain.WrapError(domain.ErrTemporary, operation, err)
	case failureRejected:
		return &unreadableDocument{cause: err}
	default:
		return err
	}
}
