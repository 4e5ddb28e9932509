package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/infrastructure/resilience"
)

func TestExtractFromImageSendsBase64Image(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"nombre_profesor\":\"Ana Ruiz\",\"dias_reposo\":5,\"diagnostico_codigo\":null}"}`))
	}))
	defer server.Close()

	model := NewLicenseModel(New(server.URL, "llava", Options{}))
	got, err := model.ExtractFromImage(context.Background(), "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("ExtractFromImage() error = %v", err)
	}
	if got.ProfessionalName != "Ana Ruiz" || got.RestDays != 5 || got.DiagnosisCode != "" {
		t.Fatalf("unexpected license %+v", got)
	}

	images, _ := payload["images"].([]any)
	if len(images) != 1 || images[0] != base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
		t.Fatalf("expected base64 image in request, got %v", payload["images"])
	}
	if payload["format"] != "json" || payload["model"] != "llava" {
		t.Fatalf("unexpected request %v", payload)
	}
}

func TestExtractFromTextEmbedsCertificateText(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		prompt, _ = payload["prompt"].(string)
		if _, ok := payload["images"]; ok {
			t.Errorf("text extraction must not send images")
		}
		_, _ = w.Write([]byte(`{"response":"Here you go: {\"rut_profesor\":\"12.345.678-5\"} done"}`))
	}))
	defer server.Close()

	model := NewLicenseModel(New(server.URL, "llava", Options{}))
	got, err := model.ExtractFromText(context.Background(), "LICENCIA MEDICA folio 991")
	if err != nil {
		t.Fatalf("ExtractFromText() error = %v", err)
	}
	if got.ProfessionalID != "12.345.678-5" {
		t.Fatalf("unexpected license %+v", got)
	}
	if !strings.Contains(prompt, "folio 991") || !strings.Contains(prompt, "rut_profesor") {
		t.Fatalf("unexpected prompt: %s", prompt)
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	model := NewLicenseModel(New(server.URL, "llava", Options{}))
	_, err := model.ExtractFromText(context.Background(), "text")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestInvalidModelJSONIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"[1,2,3]"}`))
	}))
	defer server.Close()

	model := NewLicenseModel(New(server.URL, "llava", Options{}))
	_, err := model.ExtractFromText(context.Background(), "text")
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected invalid JSON error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("malformed model output must not be temporary")
	}
}

func TestExecutorDoesNotRetryWithSingleAttempt(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		BreakerEnabled:      false,
	})
	model := NewLicenseModel(New(server.URL, "llava", Options{ResilienceExecutor: exec}))
	if _, err := model.ExtractFromText(context.Background(), "text"); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestModelRejectionBecomesInvalidInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"image: unknown format"}`))
	}))
	defer server.Close()

	model := NewLicenseModel(New(server.URL, "llava", Options{}))
	_, err := model.ExtractFromImage(context.Background(), "image/png", []byte("not-a-png"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	var detailed domain.DetailedError
	if !errors.As(err, &detailed) || detailed.Detail() == "" {
		t.Fatalf("expected an operator detail, got %v", err)
	}
	if !strings.Contains(err.Error(), "image: unknown format") {
		t.Fatalf("expected ollama error text in the cause, got %v", err)
	}
}

func TestMissingModelIsNeitherTemporaryNorInputError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llava\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	model := NewLicenseModel(New(server.URL, "llava", Options{}))
	_, err := model.ExtractFromText(context.Background(), "text")
	if err == nil || domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected a plain configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "try pulling it first") {
		t.Fatalf("expected the decoded ollama message, got %v", err)
	}
}

func TestClassifierNeverRequestsRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	model := NewLicenseModel(New(server.URL, "llava", Options{ResilienceExecutor: exec}))
	_, err := model.ExtractFromText(context.Background(), "text")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one attempt even with retries configured, got %d", calls)
	}
}

func TestClassifyOllamaErrorBreakerAccounting(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		record bool
	}{
		{"canceled", context.Canceled, false},
		{"rejected", &HTTPStatusError{StatusCode: http.StatusBadRequest}, false},
		{"unavailable", &HTTPStatusError{StatusCode: http.StatusBadGateway}, true},
		{"missing model", &HTTPStatusError{StatusCode: http.StatusNotFound}, true},
	}
	for _, tc := range cases {
		got := classifyOllamaError(tc.err)
		if got.Retryable || got.RecordFailure != tc.record {
			t.Fatalf("%s: unexpected classification %+v", tc.name, got)
		}
	}
}
