package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/metrics"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/models"
)

// DiagnoseToolName is the name under which the diagnosis tool is exposed
const DiagnoseToolName = "diagnose_plant_health"

// MaxCropLength bounds the crop hint accepted from callers
const MaxCropLength = 64

const (
	msgServiceUnavailable = "Plant diagnosis is currently unavailable because the vision model is not configured. Please contact the service operator."
	msgUnknownCrop        = "Invalid input: unrecognized crop %q. Use one of the supported crop identifiers, or omit crop to let the model identify it."
	msgCropTooLong        = "Invalid input: crop must be at most %d characters."
	msgUpstreamAuth       = "Diagnosis failed: the vision model rejected the service credentials. Please contact the service operator."
	msgUpstreamQuota      = "Diagnosis failed: the vision model usage limit has been reached. Please try again later."
	msgUpstreamUnknown    = "Diagnosis failed: the vision model could not analyze the image. Please try again."
)

// CropValidator is the read side of the crop catalog
type CropValidator interface {
	Size() int
	Contains(id string) bool
}

// DiagnosisService runs the diagnose_plant_health pipeline: preflight, image
// validation, crop validation, prompt composition, model call and outcome
// mapping. It keeps no per-request state.
type DiagnosisService struct {
	model    VisionModel
	codec    *ImageCodec
	crops    CropValidator
	composer *PromptComposer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewDiagnosisService wires the pipeline together. timeout bounds each model call.
func NewDiagnosisService(model VisionModel, codec *ImageCodec, crops CropValidator, composer *PromptComposer, timeout time.Duration, logger *zap.Logger) *DiagnosisService {
	return &DiagnosisService{
		model:    model,
		codec:    codec,
		crops:    crops,
		composer: composer,
		timeout:  timeout,
		logger:   logger,
	}
}

// Enabled reports whether the model client is configured
func (s *DiagnosisService) Enabled() bool {
	return s.model.Enabled()
}

// Model returns the vision model id
func (s *DiagnosisService) Model() string {
	return s.model.Model()
}

// IncludesTreatment reports whether reports carry treatment guidance
func (s *DiagnosisService) IncludesTreatment() bool {
	return s.composer.IncludesTreatment()
}

// ToolDescription returns the description advertised for the tool
func (s *DiagnosisService) ToolDescription() string {
	return s.composer.ToolDescription()
}

// Diagnose validates the request, calls the model and maps every result to a
// DiagnosisOutcome. It never returns raw upstream error text to the caller.
func (s *DiagnosisService) Diagnose(ctx context.Context, req models.DiagnosisRequest) models.DiagnosisOutcome {
	startTime := time.Now()
	log := s.logger.With(zap.String("request_id", uuid.NewString()))

	fields := []zap.Field{zap.String("tool", DiagnoseToolName)}
	if req.Crop != "" {
		fields = append(fields, zap.String("crop", req.Crop))
	}
	log.Info("tool invoked", fields...)

	outcome := s.diagnose(ctx, log, req)

	label := "success"
	if !outcome.Succeeded() {
		label = string(outcome.Failure.Kind)
		log.Warn("diagnosis failed",
			zap.String("kind", label),
			zap.Duration("took", time.Since(startTime)))
	} else {
		log.Info("diagnosis succeeded",
			zap.Int("report_chars", len(outcome.ReportText)),
			zap.Duration("took", time.Since(startTime)))
	}
	metrics.DiagnosesTotal.WithLabelValues(label).Inc()
	metrics.DiagnosisDuration.Observe(time.Since(startTime).Seconds())

	return outcome
}

func (s *DiagnosisService) diagnose(ctx context.Context, log *zap.Logger, req models.DiagnosisRequest) models.DiagnosisOutcome {
	if !s.model.Enabled() {
		return models.Failed(models.NewFailure(models.FailureServiceUnavailable, msgServiceUnavailable))
	}

	image, err := s.codec.Decode(req.Image)
	if err != nil {
		return models.Failed(asFailure(err, models.FailureInvalidInput, msgInvalidFormat))
	}
	log.Info("image accepted",
		zap.String("mime_type", image.MimeType),
		zap.Int("size_bytes", image.SizeBytes),
		zap.String("size_mb", fmt.Sprintf("%.2f", image.SizeMB())))
	metrics.ImageSizeBytes.Observe(float64(image.SizeBytes))

	crop, err := s.validateCrop(req.Crop)
	if err != nil {
		return models.Failed(asFailure(err, models.FailureInvalidInput, msgInvalidFormat))
	}

	prompt := s.composer.Compose(crop)

	text, err := s.callModel(ctx, prompt, image)
	if err != nil {
		failure := upstreamFailure(err)
		log.Error("vision model call failed", zap.String("kind", string(failure.Kind)), zap.Error(err))
		return models.Failed(failure)
	}

	if strings.TrimSpace(text) == "" {
		log.Error("vision model returned an empty report")
		return models.Failed(models.NewFailure(models.FailureUpstreamUnknownError, msgUpstreamUnknown))
	}

	return models.Success(text)
}

// validateCrop normalizes the crop hint. With a non-empty catalog the value
// must be a catalog identifier; with an empty catalog any value up to
// MaxCropLength is accepted.
func (s *DiagnosisService) validateCrop(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	if len(trimmed) > MaxCropLength {
		return "", models.NewFailure(models.FailureInvalidInput, fmt.Sprintf(msgCropTooLong, MaxCropLength))
	}

	// A non-blank value that normalizes to nothing ("()") names no crop
	crop := NormalizeCropName(trimmed)
	if crop == "" || (s.crops.Size() > 0 && !s.crops.Contains(crop)) {
		return "", models.NewFailure(models.FailureInvalidInput, fmt.Sprintf(msgUnknownCrop, trimmed))
	}
	return crop, nil
}

// callModel bounds the model call with the configured timeout and turns a
// panic in the client into an ordinary upstream error.
func (s *DiagnosisService) callModel(ctx context.Context, prompt string, image *models.DecodedImage) (text string, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: panic in model client: %v", ErrUpstreamUnknown, r)
		}
	}()

	return s.model.Generate(ctx, prompt, image, DefaultGenerationParams)
}

// upstreamFailure maps a model error to a caller-facing failure
func upstreamFailure(err error) *models.Failure {
	class := err
	switch {
	case errors.Is(err, ErrModelNotConfigured):
		return models.NewFailure(models.FailureServiceUnavailable, msgServiceUnavailable)
	case errors.Is(err, ErrUpstreamAuth):
		class = ErrUpstreamAuth
	case errors.Is(err, ErrUpstreamQuota):
		class = ErrUpstreamQuota
	case errors.Is(err, ErrUpstreamUnknown):
		class = ErrUpstreamUnknown
	default:
		class = ClassifyUpstreamError(err)
	}

	switch class {
	case ErrUpstreamAuth:
		return models.NewFailure(models.FailureUpstreamAuthError, msgUpstreamAuth)
	case ErrUpstreamQuota:
		return models.NewFailure(models.FailureUpstreamQuotaExceeded, msgUpstreamQuota)
	default:
		return models.NewFailure(models.FailureUpstreamUnknownError, msgUpstreamUnknown)
	}
}

func asFailure(err error, kind models.FailureKind, message string) *models.Failure {
	var f *models.Failure
	if errors.As(err, &f) {
		return f
	}
	return models.NewFailure(kind, message)
}
