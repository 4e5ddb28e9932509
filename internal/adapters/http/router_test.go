package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/leave-intake/internal/config"
	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/observability/metrics"
)

func multipartUpload(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func decodeDetail(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", res.Body.String(), err)
	}
	return payload["detail"]
}

func TestExtractLicenseReturnsModelResult(t *testing.T) {
	extractor := &extractorFake{result: domain.License{ProfessionalName: "Ana Ruiz", RestDays: 5}}
	handler := NewRouter(config.Config{MaxUploadBytes: 1 << 20}, extractor, &registrarFake{}, &readerFake{}, &exporterFake{}).Handler()

	body, contentType := multipartUpload(t, "file", "foto.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/extract-license", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	got, err := domain.DecodeLicense(res.Body.Bytes())
	if err != nil {
		t.Fatalf("decode license: %v", err)
	}
	if got.ProfessionalName != "Ana Ruiz" || got.RestDays != 5 {
		t.Fatalf("unexpected license %+v", got)
	}

	uploads := extractor.received()
	if len(uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(uploads))
	}
	if uploads[0].Filename != "foto.png" || uploads[0].MimeType != "image/png" || string(uploads[0].Data) != "png-bytes" {
		t.Fatalf("unexpected upload %+v", uploads[0])
	}
}

func TestExtractLicenseRequiresFileField(t *testing.T) {
	handler := newTestHandler(config.Config{MaxUploadBytes: 1 << 20})

	body, contentType := multipartUpload(t, "document", "a.pdf", "application/pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/extract-license", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(decodeDetail(t, res), "'file'") {
		t.Fatalf("expected missing field detail, got %s", res.Body.String())
	}
}

func TestExtractLicenseRejectsOversizedBody(t *testing.T) {
	handler := newTestHandler(config.Config{MaxUploadBytes: 16})

	body, contentType := multipartUpload(t, "file", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), multipartOverhead+64))
	req := httptest.NewRequest(http.MethodPost, "/extract-license", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestExtractLicenseMapsErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "unsupported format",
			err:        domain.WrapError(domain.ErrUnsupportedFormat, "extract license", errors.New("a.docx")),
			wantStatus: http.StatusBadRequest,
			wantDetail: unsupportedFormatDetail,
		},
		{
			name:       "unreadable pdf",
			err:        domain.WrapError(domain.ErrInvalidInput, "read pdf", errors.New("pdf has no embedded text")),
			wantStatus: http.StatusBadRequest,
			wantDetail: "read pdf: invalid input: pdf has no embedded text",
		},
		{
			name:       "model down",
			err:        domain.WrapError(domain.ErrTemporary, "ollama.generate", errors.New("connection refused")),
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: unavailableDetail,
		},
		{
			name:       "breaker open",
			err:        fmt.Errorf("ollama.generate: %w", gobreaker.ErrOpenState),
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: unavailableDetail,
		},
		{
			name:       "unexpected",
			err:        errors.New("secret stack detail"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: internalErrorDetail,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(config.Config{}, &extractorFake{err: tc.err}, &registrarFake{}, &readerFake{}, &exporterFake{}).Handler()

			body, contentType := multipartUpload(t, "file", "a.pdf", "application/pdf", []byte("%PDF"))
			req := httptest.NewRequest(http.MethodPost, "/extract-license", body)
			req.Header.Set("Content-Type", contentType)
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, res.Code)
			}
			if got := decodeDetail(t, res); got != tc.wantDetail {
				t.Fatalf("expected detail %q, got %q", tc.wantDetail, got)
			}
		})
	}
}

func TestCreateLicenseReturns201WithRecord(t *testing.T) {
	registrar := &registrarFake{}
	handler := NewRouter(config.Config{}, &extractorFake{}, registrar, &readerFake{}, &exporterFake{}).Handler()

	payload := `{"nombre_profesor":"Ana Ruiz","rut_profesor":"12.345.678-5","emitido_por":"COMPIN","fecha_inicio":"2024-01-01","fecha_fin":"2024-01-05","dias_reposo":5,"diagnostico_codigo":"J00"}`
	req := httptest.NewRequest(http.MethodPost, "/licenses", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	record, err := domain.DecodeConfirmedRecord(res.Body.Bytes())
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.ID != "lic-1" || record.Issuer != "COMPIN" || record.CreatedAt.IsZero() {
		t.Fatalf("unexpected record %+v", record)
	}
	if len(registrar.licenses) != 1 || registrar.licenses[0].DiagnosisCode != "J00" {
		t.Fatalf("expected the decoded draft to reach the registrar, got %+v", registrar.licenses)
	}
}

func TestCreateLicenseRejectsNonObjectJSON(t *testing.T) {
	registrar := &registrarFake{}
	handler := NewRouter(config.Config{}, &extractorFake{}, registrar, &readerFake{}, &exporterFake{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/licenses", strings.NewReader(`["not","an","object"]`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(registrar.licenses) != 0 {
		t.Fatalf("registrar must not be called for malformed payloads")
	}
}

func TestCreateLicenseSurfacesRejectionDetail(t *testing.T) {
	m := metrics.NewHTTPServerMetrics(serviceName)
	handler := NewRouter(
		config.Config{},
		&extractorFake{},
		&registrarFake{err: domain.Reject("RUT inválido")},
		&readerFake{},
		&exporterFake{},
		WithMetrics(m),
	).Handler()

	req := httptest.NewRequest(http.MethodPost, "/licenses", strings.NewReader(`{"rut_profesor":"1-1"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if got := decodeDetail(t, res); got != "RUT inválido" {
		t.Fatalf("expected rejection reason as detail, got %q", got)
	}

	scrape := httptest.NewRecorder()
	handler.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(scrape.Body.String(), `leave_intake_licenses_registrations_total{service="api",status="rejected"} 1`) {
		t.Fatalf("expected rejected registration to be counted, got:\n%s", scrape.Body.String())
	}
}

func TestGetLicenseByID(t *testing.T) {
	reader := &readerFake{records: []domain.ConfirmedRecord{{ID: "lic-9", License: domain.License{ProfessionalName: "ANA"}}}}
	handler := NewRouter(config.Config{}, &extractorFake{}, &registrarFake{}, reader, &exporterFake{}).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/licenses/lic-9", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/licenses/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if got := decodeDetail(t, res); got != domain.ErrLicenseNotFound.Error() {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestListLicensesLimit(t *testing.T) {
	reader := &readerFake{}
	handler := NewRouter(config.Config{ListDefaultLimit: 50}, &extractorFake{}, &registrarFake{}, reader, &exporterFake{}).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/licenses", nil))
	if res.Code != http.StatusOK || reader.lastLimit != 50 {
		t.Fatalf("expected default limit 50, got status %d limit %d", res.Code, reader.lastLimit)
	}
	if strings.TrimSpace(res.Body.String()) != "[]" {
		t.Fatalf("expected empty json array, got %q", res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/licenses?limit=7", nil))
	if reader.lastLimit != 7 {
		t.Fatalf("expected limit 7, got %d", reader.lastLimit)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/licenses?limit=abc", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", res.Code)
	}
}

func TestExportLicensesServesWorkbook(t *testing.T) {
	reader := &readerFake{records: []domain.ConfirmedRecord{{ID: "lic-1"}, {ID: "lic-2"}}}
	exporter := &exporterFake{}
	handler := NewRouter(config.Config{}, &extractorFake{}, &registrarFake{}, reader, exporter).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/licenses/export.xlsx", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "licencias.xlsx") {
		t.Fatalf("expected attachment filename, got %q", res.Header().Get("Content-Disposition"))
	}
	if reader.lastLimit != exportLimit || len(exporter.exported) != 2 {
		t.Fatalf("expected export of listed records, limit=%d exported=%d", reader.lastLimit, len(exporter.exported))
	}
}

func TestMetricsRouteOnlyWhenEnabled(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", res.Code)
	}
}
