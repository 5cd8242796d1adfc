package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.AdvisoryMode != AdvisoryDiagnosisOnly {
		t.Errorf("expected advisory mode %q, got %q", AdvisoryDiagnosisOnly, cfg.Service.AdvisoryMode)
	}
	if cfg.Service.OutputFormat != FormatStructured {
		t.Errorf("expected output format %q, got %q", FormatStructured, cfg.Service.OutputFormat)
	}
	if cfg.Service.MaxImageSizeMB != 5 {
		t.Errorf("expected max image size 5, got %v", cfg.Service.MaxImageSizeMB)
	}
	if cfg.Service.ModelID != DefaultModelID {
		t.Errorf("expected model %q, got %q", DefaultModelID, cfg.Service.ModelID)
	}
	if cfg.UpstreamTimeout != 60*time.Second {
		t.Errorf("expected 60s upstream timeout, got %s", cfg.UpstreamTimeout)
	}
	if cfg.Port != "3000" {
		t.Errorf("expected port 3000, got %s", cfg.Port)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("expected wildcard CORS origin, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ModelConfigured() {
		t.Error("model should not be configured without a key")
	}
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("ADVISORY_MODE", "FULL_ADVISORY")
	v.Set("OUTPUT_FORMAT", "text")
	v.Set("GEMINI_API_KEY", "  key-123 ")
	v.Set("CROP_CATALOG_URL", "catalog.example.org")
	v.Set("CROP_CATALOG_REFRESH_INTERVAL", "1h")
	v.Set("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.AdvisoryMode != AdvisoryFull {
		t.Errorf("expected %q, got %q", AdvisoryFull, cfg.Service.AdvisoryMode)
	}
	if cfg.Service.OutputFormat != FormatText {
		t.Errorf("expected %q, got %q", FormatText, cfg.Service.OutputFormat)
	}
	if cfg.APIKey != "key-123" {
		t.Errorf("expected trimmed key, got %q", cfg.APIKey)
	}
	if !cfg.ModelConfigured() {
		t.Error("model should be configured")
	}
	if cfg.CatalogRefreshInterval != time.Hour {
		t.Errorf("expected 1h refresh interval, got %s", cfg.CatalogRefreshInterval)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestFromViper_APIKeyFallbacks(t *testing.T) {
	v := viper.New()
	v.Set("GOOGLE_API_KEY", "google-key")
	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "google-key" {
		t.Errorf("expected GOOGLE_API_KEY fallback, got %q", cfg.APIKey)
	}

	keyFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyFile, []byte("file-key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	v = viper.New()
	v.Set("GOOGLE_API_KEY_FILE", keyFile)
	cfg, err = FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "file-key" {
		t.Errorf("expected key from file, got %q", cfg.APIKey)
	}
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"advisory mode", "ADVISORY_MODE", "everything"},
		{"output format", "OUTPUT_FORMAT", "xml"},
		{"image size", "MAX_IMAGE_SIZE_MB", 0},
		{"timeout", "UPSTREAM_TIMEOUT", "-1s"},
		{"rate", "RATE_LIMIT_RPS", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)
			if _, err := FromViper(v); err == nil {
				t.Errorf("expected error for %s=%v", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}
