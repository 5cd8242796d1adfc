package models

import "fmt"

// FailureKind is the caller-visible class of a failed diagnosis
type FailureKind string

const (
	FailureServiceUnavailable    FailureKind = "service_unavailable"
	FailureInvalidInput          FailureKind = "invalid_input"
	FailureTooLarge              FailureKind = "too_large"
	FailureUpstreamAuthError     FailureKind = "upstream_auth_error"
	FailureUpstreamQuotaExceeded FailureKind = "upstream_quota_exceeded"
	FailureUpstreamUnknownError  FailureKind = "upstream_unknown_error"
)

// DiagnosisRequest is the input of the diagnose_plant_health tool.
// An empty Crop means no crop hint was given.
type DiagnosisRequest struct {
	Image string `json:"image"`
	Crop  string `json:"crop,omitempty"`
}

// DecodedImage is a validated image payload. It lives for a single request.
type DecodedImage struct {
	MimeType  string // "image/jpeg", "image/png" or "image/webp"
	Data      []byte
	SizeBytes int // estimated from the base64 length
}

// SizeMB returns the estimated size in megabytes
func (d *DecodedImage) SizeMB() float64 {
	return float64(d.SizeBytes) / (1024 * 1024)
}

// Failure is a diagnosis failure with a message that is safe to show callers.
// It implements error so components can return it through normal error paths.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// NewFailure creates a Failure of the given kind
func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// DiagnosisOutcome is either a success carrying the model report or a failure.
// Exactly one of ReportText (on success) and Failure is meaningful.
type DiagnosisOutcome struct {
	ReportText string
	Failure    *Failure
}

// Succeeded reports whether the outcome is a success
func (o DiagnosisOutcome) Succeeded() bool {
	return o.Failure == nil
}

// Text returns the report on success or the user-facing message on failure
func (o DiagnosisOutcome) Text() string {
	if o.Failure != nil {
		return o.Failure.Message
	}
	return o.ReportText
}

// Success builds a successful outcome
func Success(report string) DiagnosisOutcome {
	return DiagnosisOutcome{ReportText: report}
}

// Failed builds a failed outcome
func Failed(f *Failure) DiagnosisOutcome {
	return DiagnosisOutcome{Failure: f}
}
