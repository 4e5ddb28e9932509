package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("API_PORT", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("LICENSES_STRICT_RUT", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("RESILIENCE_RETRY_MAX_ATTEMPTS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "8000" {
		t.Fatalf("expected default port 8000, got %q", cfg.APIPort)
	}
	if cfg.NATSSubject != "license.confirmed" {
		t.Fatalf("expected default subject, got %q", cfg.NATSSubject)
	}
	if !cfg.LicensesStrictRUT {
		t.Fatalf("expected strict rut by default")
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("expected 10 MiB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.Resilience().RetryMaxAttempts != 1 {
		t.Fatalf("expected single attempt by default, got %d", cfg.Resilience().RetryMaxAttempts)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LICENSES_STRICT_RUT", "false")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("RESILIENCE_BREAKER_OPEN_SECONDS", "5")
	t.Setenv("OLLAMA_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LicensesStrictRUT {
		t.Fatalf("expected strict rut override")
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.Resilience().BreakerOpenTimeout != 5*time.Second {
		t.Fatalf("expected 5s breaker timeout, got %v", cfg.Resilience().BreakerOpenTimeout)
	}
	if cfg.OllamaTimeoutSeconds != 120 {
		t.Fatalf("expected fallback for malformed int, got %d", cfg.OllamaTimeoutSeconds)
	}
}

func TestLoadAppliesYAMLFileUnderEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.yaml")
	content := []byte("api_port: 9000\nnats_subject: licenses.test\nlicenses_strict_rut: false\nreplacement_notify_to: \"+56900000000\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_PORT", "")
	t.Setenv("LICENSES_STRICT_RUT", "")
	t.Setenv("REPLACEMENT_NOTIFY_TO", "")
	t.Setenv("NATS_SUBJECT", "licenses.env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9000" {
		t.Fatalf("expected port from file, got %q", cfg.APIPort)
	}
	if cfg.NATSSubject != "licenses.env" {
		t.Fatalf("expected env to win over file, got %q", cfg.NATSSubject)
	}
	if cfg.LicensesStrictRUT {
		t.Fatalf("expected strict rut disabled by file")
	}
	if cfg.ReplacementNotifyTo != "+56900000000" {
		t.Fatalf("unexpected recipient %q", cfg.ReplacementNotifyTo)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
