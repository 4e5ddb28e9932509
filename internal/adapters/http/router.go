package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/leave-intake/internal/config"
	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/core/ports"
	"github.com/kirillkom/leave-intake/internal/observability/metrics"
)

const (
	serviceName = "api"

	// multipartOverhead leaves room for boundaries and part headers on top of
	// the file size limit.
	multipartOverhead = 1 << 20
	maxJSONBodyBytes  = 1 << 20
	exportLimit       = 500
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Router struct {
	cfg       config.Config
	extractor ports.LicenseExtractor
	registrar ports.LicenseRegistrar
	reader    ports.LicenseReader
	exporter  ports.LicenseExporter
	logger    *slog.Logger
	metrics   *metrics.HTTPServerMetrics
}

type RouterOption func(*Router)

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func NewRouter(
	cfg config.Config,
	extractor ports.LicenseExtractor,
	registrar ports.LicenseRegistrar,
	reader ports.LicenseReader,
	exporter ports.LicenseExporter,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:       cfg,
		extractor: extractor,
		registrar: registrar,
		reader:    reader,
		exporter:  exporter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.root)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /extract-license", rt.extractLicense)
	mux.HandleFunc("POST /licenses", rt.createLicense)
	mux.HandleFunc("GET /licenses", rt.listLicenses)
	mux.HandleFunc("GET /licenses/export.xlsx", rt.exportLicenses)
	mux.HandleFunc("GET /licenses/{id}", rt.getLicense)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = requestTimeoutMiddleware(handler, time.Duration(rt.cfg.APIRequestTimeoutSeconds)*time.Second)
	handler = backpressureMiddleware(
		handler,
		rt.cfg.APIBackpressureMaxInFlight,
		time.Duration(rt.cfg.APIBackpressureWaitMillis)*time.Millisecond,
	)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Leave intake API is running"})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) extractLicense(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+multipartOverhead)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	upload := domain.RawUpload{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}

	start := time.Now()
	license, err := rt.extractor.ExtractLicense(r.Context(), upload)
	if rt.metrics != nil && !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		rt.metrics.RecordExtraction(serviceName, uploadKind(upload), time.Since(start), err)
	}
	if err != nil {
		rt.writeError(w, r, "extract_license_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, license)
}

func (rt *Router) createLicense(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "request body is too large or unreadable")
		return
	}
	license, err := domain.DecodeLicense(raw)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}

	record, err := rt.registrar.Register(r.Context(), license)
	if err != nil {
		rt.recordRegistration(registrationStatus(err))
		rt.writeError(w, r, "register_license_failed", err)
		return
	}
	rt.recordRegistration("created")
	writeJSON(w, http.StatusCreated, record)
}

func (rt *Router) listLicenses(w http.ResponseWriter, r *http.Request) {
	limit := rt.cfg.ListDefaultLimit
	if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			writeDetail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := rt.reader.ListRecent(r.Context(), limit)
	if err != nil {
		rt.writeError(w, r, "list_licenses_failed", err)
		return
	}
	if records == nil {
		records = []domain.ConfirmedRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (rt *Router) getLicense(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeDetail(w, http.StatusBadRequest, "license id is required")
		return
	}

	record, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "get_license_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) exportLicenses(w http.ResponseWriter, r *http.Request) {
	records, err := rt.reader.ListRecent(r.Context(), exportLimit)
	if err != nil {
		rt.writeError(w, r, "export_licenses_failed", err)
		return
	}
	payload, err := rt.exporter.Export(records)
	if err != nil {
		rt.writeError(w, r, "export_licenses_failed", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="licencias.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error(event, "request_id", requestIDFromContext(r.Context()), "status", status, "error", err)
	}
	writeDetail(w, status, errorDetail(err, status))
}

func (rt *Router) recordRegistration(status string) {
	if rt.metrics != nil {
		rt.metrics.RecordRegistration(serviceName, status)
	}
}

func registrationStatus(err error) string {
	var rejection *domain.RejectionError
	if errors.As(err, &rejection) {
		return "rejected"
	}
	return "error"
}

func uploadKind(upload domain.RawUpload) string {
	mediaType := upload.MediaType()
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = domain.MediaTypeFromFilename(upload.Filename)
	}
	switch {
	case mediaType == domain.MimePDF:
		return "pdf"
	case strings.HasPrefix(mediaType, "image/"):
		return "image"
	default:
		return "unknown"
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
