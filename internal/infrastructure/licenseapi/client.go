package licenseapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/infrastructure/resilience"
)

const maxErrorBody = 4096

// Client talks to the intake API. Extract satisfies ports.ExtractionService and
// Persist satisfies ports.PersistenceService.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) Extract(ctx context.Context, upload domain.RawUpload) (domain.License, error) {
	body, contentType, err := multipartUpload(upload)
	if err != nil {
		return domain.License{}, err
	}

	var raw []byte
	err = c.execute(ctx, "licenses.extract", func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/extract-license", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create extract request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		raw, err = c.do(req, "extract-license")
		return err
	})
	if err != nil {
		return domain.License{}, err
	}
	return domain.DecodeLicense(raw)
}

func (c *Client) Persist(ctx context.Context, license domain.License) (*domain.ConfirmedRecord, error) {
	body, err := json.Marshal(license)
	if err != nil {
		return nil, fmt.Errorf("marshal license: %w", err)
	}

	var raw []byte
	err = c.execute(ctx, "licenses.persist", func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/licenses", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create persist request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		raw, err = c.do(req, "licenses")
		return err
	})
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}

	record, err := domain.DecodeConfirmedRecord(raw)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}
	return &record, nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, operation, call, classifyAPIError)
}

func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(operation, resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	return raw, nil
}

func multipartUpload(upload domain.RawUpload) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := upload.Filename
	if filename == "" {
		filename = "upload"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	contentType := upload.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
