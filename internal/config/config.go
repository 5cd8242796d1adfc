// Package config reads process configuration from the environment (and an
// optional .env file) once at startup. The result is never mutated afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AdvisoryMode decides whether treatment guidance is part of the report
type AdvisoryMode string

const (
	AdvisoryDiagnosisOnly AdvisoryMode = "diagnosis_only"
	AdvisoryFull          AdvisoryMode = "full_advisory"
)

// OutputFormat decides how the model is asked to style the report
type OutputFormat string

const (
	FormatStructured OutputFormat = "structured"
	FormatText       OutputFormat = "text"
)

const (
	DefaultModelID        = "gemini-2.5-flash"
	DefaultMaxImageSizeMB = 5
)

// ServiceConfig is the read-only configuration shared by prompt composition
// and the diagnosis pipeline.
type ServiceConfig struct {
	AdvisoryMode   AdvisoryMode
	OutputFormat   OutputFormat
	ModelID        string
	MaxImageSizeMB float64
}

// Config is the full process configuration
type Config struct {
	Service ServiceConfig

	// Model credential; empty leaves the tool in ServiceUnavailable mode
	APIKey          string
	UpstreamTimeout time.Duration

	CatalogURL             string
	CatalogAPIKey          string
	CatalogRefreshInterval time.Duration

	Port               string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	LogLevel           string
}

// Load reads envFile (if it exists) into the environment and then builds the
// configuration from environment variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		Service: ServiceConfig{
			AdvisoryMode:   AdvisoryMode(strings.ToLower(strings.TrimSpace(v.GetString("ADVISORY_MODE")))),
			OutputFormat:   OutputFormat(strings.ToLower(strings.TrimSpace(v.GetString("OUTPUT_FORMAT")))),
			ModelID:        strings.TrimSpace(v.GetString("GEMINI_MODEL")),
			MaxImageSizeMB: v.GetFloat64("MAX_IMAGE_SIZE_MB"),
		},
		APIKey:                 resolveAPIKey(v),
		UpstreamTimeout:        v.GetDuration("UPSTREAM_TIMEOUT"),
		CatalogURL:             strings.TrimSpace(v.GetString("CROP_CATALOG_URL")),
		CatalogAPIKey:          strings.TrimSpace(v.GetString("CROP_CATALOG_API_KEY")),
		CatalogRefreshInterval: v.GetDuration("CROP_CATALOG_REFRESH_INTERVAL"),
		Port:                   v.GetString("PORT"),
		CORSAllowedOrigins:     splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RateLimitRPS:           v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:         v.GetInt("RATE_LIMIT_BURST"),
		LogLevel:               strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ADVISORY_MODE", string(AdvisoryDiagnosisOnly))
	v.SetDefault("OUTPUT_FORMAT", string(FormatStructured))
	v.SetDefault("GEMINI_MODEL", DefaultModelID)
	v.SetDefault("MAX_IMAGE_SIZE_MB", DefaultMaxImageSizeMB)
	v.SetDefault("UPSTREAM_TIMEOUT", 60*time.Second)
	v.SetDefault("CROP_CATALOG_REFRESH_INTERVAL", time.Duration(0))
	v.SetDefault("PORT", "3000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("LOG_LEVEL", "info")
}

// resolveAPIKey prefers GEMINI_API_KEY, then GOOGLE_API_KEY, then a key file
func resolveAPIKey(v *viper.Viper) string {
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if val := strings.TrimSpace(v.GetString(key)); val != "" {
			return val
		}
	}
	if keyPath := v.GetString("GOOGLE_API_KEY_FILE"); keyPath != "" {
		if data, err := os.ReadFile(keyPath); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks enumerated values and numeric limits
func (c *Config) Validate() error {
	switch c.Service.AdvisoryMode {
	case AdvisoryDiagnosisOnly, AdvisoryFull:
	default:
		return fmt.Errorf("ADVISORY_MODE must be %q or %q, got %q", AdvisoryDiagnosisOnly, AdvisoryFull, c.Service.AdvisoryMode)
	}
	switch c.Service.OutputFormat {
	case FormatStructured, FormatText:
	default:
		return fmt.Errorf("OUTPUT_FORMAT must be %q or %q, got %q", FormatStructured, FormatText, c.Service.OutputFormat)
	}
	if c.Service.ModelID == "" {
		return fmt.Errorf("GEMINI_MODEL must not be empty")
	}
	if c.Service.MaxImageSizeMB <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE_MB must be positive, got %v", c.Service.MaxImageSizeMB)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	if c.CatalogRefreshInterval < 0 {
		return fmt.Errorf("CROP_CATALOG_REFRESH_INTERVAL must not be negative")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// ModelConfigured reports whether a model credential is present
func (c *Config) ModelConfigured() bool {
	return c.APIKey != ""
}
