package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/metrics"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/models"
)

// Upstream error classes. Errors returned by VisionModel.Generate wrap one of
// these so callers can map them with errors.Is.
var (
	ErrModelNotConfigured = errors.New("vision model not configured")
	ErrUpstreamAuth       = errors.New("upstream rejected credentials")
	ErrUpstreamQuota      = errors.New("upstream quota exceeded")
	ErrUpstreamUnknown    = errors.New("upstream request failed")
)

// GenerationParams are the sampling settings for a single generate call
type GenerationParams struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// DefaultGenerationParams is used for every diagnosis
var DefaultGenerationParams = GenerationParams{
	Temperature:     0.4,
	TopP:            0.95,
	TopK:            40,
	MaxOutputTokens: 2048,
}

// VisionModel is a text+image in, text out model
type VisionModel interface {
	// Enabled reports whether a credential is configured
	Enabled() bool
	// Model returns the model id
	Model() string
	// Generate runs the prompt against the image and returns the raw text
	Generate(ctx context.Context, prompt string, image *models.DecodedImage, params GenerationParams) (string, error)
}

// GeminiService calls the Gemini API through the genai SDK
type GeminiService struct {
	client  *genai.Client
	model   string
	enabled bool
	logger  *zap.Logger
}

// NewGeminiService creates the Gemini client. An empty apiKey yields a
// disabled service rather than an error so the process can still start.
func NewGeminiService(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiService, error) {
	svc := &GeminiService{model: model, logger: logger}

	if apiKey == "" {
		logger.Warn("Gemini service: disabled (no GEMINI_API_KEY)")
		return svc, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	svc.client = client
	svc.enabled = true
	logger.Info("Gemini service: enabled", zap.String("model", model))
	return svc, nil
}

// Enabled returns whether Gemini is available
func (s *GeminiService) Enabled() bool {
	return s.enabled
}

// Model returns the configured model id
func (s *GeminiService) Model() string {
	return s.model
}

// Generate sends the prompt and image to Gemini and returns the response text
func (s *GeminiService) Generate(ctx context.Context, prompt string, image *models.DecodedImage, params GenerationParams) (string, error) {
	if !s.enabled {
		return "", ErrModelNotConfigured
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image.Data, image.MimeType),
		}, genai.RoleUser),
	}

	startTime := time.Now()
	metrics.GeminiRequestsTotal.Inc()

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(params.Temperature),
		TopP:            genai.Ptr(params.TopP),
		TopK:            genai.Ptr(params.TopK),
		MaxOutputTokens: params.MaxOutputTokens,
	})
	metrics.GeminiAPILatency.Observe(time.Since(startTime).Seconds())

	if err != nil {
		class := ClassifyUpstreamError(err)
		metrics.GeminiErrorsTotal.WithLabelValues(upstreamErrorLabel(class)).Inc()
		return "", fmt.Errorf("%w: %w", class, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		metrics.GeminiErrorsTotal.WithLabelValues("empty").Inc()
		reason := ""
		if len(resp.Candidates) > 0 {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("%w: empty response (finish_reason=%q)", ErrUpstreamUnknown, reason)
	}

	return text, nil
}

// ClassifyUpstreamError maps a model client error to ErrUpstreamAuth,
// ErrUpstreamQuota or ErrUpstreamUnknown using the status code when available
// and the message text otherwise.
func ClassifyUpstreamError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUpstreamUnknown
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUpstreamAuth
	case http.StatusTooManyRequests:
		return ErrUpstreamQuota
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"quota", "rate limit", "resource_exhausted", "resource exhausted", "too many requests"} {
		if strings.Contains(msg, marker) {
			return ErrUpstreamQuota
		}
	}
	for _, marker := range []string{"api key", "api_key", "apikey", "unauthenticated", "permission_denied", "permission denied", "credential"} {
		if strings.Contains(msg, marker) {
			return ErrUpstreamAuth
		}
	}
	return ErrUpstreamUnknown
}

func upstreamErrorLabel(class error) string {
	switch class {
	case ErrUpstreamAuth:
		return "auth"
	case ErrUpstreamQuota:
		return "quota"
	default:
		return "unknown"
	}
}
