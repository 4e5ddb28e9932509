package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/infrastructure/resilience"
)

type Client struct {
	baseURL     string
	visionModel string
	httpClient  *http.Client
	executor    *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, visionModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.ResilienceExecutor,
	}
}

// LicenseModel asks a multimodal model for the license fields. It implements
// ports.DocumentModel.
type LicenseModel struct {
	client *Client
}

func NewLicenseModel(client *Client) *LicenseModel {
	return &LicenseModel{client: client}
}

func (m *LicenseModel) ExtractFromImage(ctx context.Context, mimeType string, data []byte) (domain.License, error) {
	if len(data) == 0 {
		return domain.License{}, fmt.Errorf("empty image")
	}
	reqBody := map[string]any{
		"model":   m.client.visionModel,
		"prompt":  buildImagePrompt(mimeType),
		"images":  []string{base64.StdEncoding.EncodeToString(data)},
		"stream":  false,
		"format":  "json",
		"options": map[string]any{"temperature": 0.1},
	}
	respText, err := m.client.generate(ctx, reqBody)
	if err != nil {
		return domain.License{}, err
	}
	return parseLicense(respText)
}

func (m *LicenseModel) ExtractFromText(ctx context.Context, text string) (domain.License, error) {
	reqBody := map[string]any{
		"model":   m.client.visionModel,
		"prompt":  buildTextPrompt(text),
		"stream":  false,
		"format":  "json",
		"options": map[string]any{"temperature": 0.1},
	}
	respText, err := m.client.generate(ctx, reqBody)
	if err != nil {
		return domain.License{}, err
	}
	return parseLicense(respText)
}

func parseLicense(respText string) (domain.License, error) {
	license, err := domain.DecodeLicense([]byte(extractJSONObject(respText)))
	if err != nil {
		return domain.License{}, fmt.Errorf("model returned invalid JSON structure: %w", err)
	}
	return license, nil
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
