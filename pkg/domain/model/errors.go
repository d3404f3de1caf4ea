package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

// Error taxonomy shared by all layers. Layers wrap these with goerr.Wrap and callers
// test them with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrAuthentication     = errors.New("authentication required")
	ErrAuthorization      = errors.New("not authorized")
	ErrConflict           = errors.New("conflict")
	ErrExternalCapability = errors.New("external capability failed")
	ErrIntegration        = errors.New("integration failed")
	ErrConfiguration      = errors.New("configuration error")
	ErrRetryExhausted     = errors.New("retry exhausted")
	ErrRateLimited        = errors.New("rate limit exceeded")

	// ErrFileValidation is a validation failure of an uploaded file
	ErrFileValidation = fmt.Errorf("file %w", ErrValidation)
)

// Capability names an external capability used by the pipeline
type Capability string

const (
	CapabilityAudio         Capability = "audio"
	CapabilityTranscription Capability = "transcription"
	CapabilityRedaction     Capability = "redaction"
	CapabilityExtraction    Capability = "extraction"
	CapabilityEmbedding     Capability = "embedding"
	CapabilityStorage       Capability = "storage"
)

// CapabilityError is a failure of an external capability provider
type CapabilityError struct {
	Capability Capability
	Err        error
}

// NewCapabilityError wraps err as a failure of the given capability
func NewCapabilityError(c Capability, err error) *CapabilityError {
	return &CapabilityError{Capability: c, Err: err}
}

func (e *CapabilityError) Error() string {
	if e.Err == nil {
		return string(e.Capability) + " failed"
	}
	return string(e.Capability) + " failed: " + e.Err.Error()
}

func (e *CapabilityError) Unwrap() []error {
	return []error{ErrExternalCapability, e.Err}
}

// Code returns the API error code of the capability failure
func (e *CapabilityError) Code() string {
	switch e.Capability {
	case CapabilityAudio:
		return "AUDIO_PROCESSING_ERROR"
	case CapabilityTranscription:
		return "TRANSCRIPTION_ERROR"
	case CapabilityExtraction:
		return "TASK_EXTRACTION_ERROR"
	default:
		return strings.ToUpper(string(e.Capability)) + "_ERROR"
	}
}

// IntegrationError is an adapter-level failure tagged with the provider
type IntegrationError struct {
	Provider   types.IntegrationType
	Reason     string
	StatusCode int
}

func (e *IntegrationError) Error() string {
	return string(e.Provider) + " integration error: " + e.Reason
}

func (e *IntegrationError) Is(target error) bool {
	return target == ErrIntegration
}

// Code returns the API error code, e.g. ASANA_INTEGRATION_ERROR
func (e *IntegrationError) Code() string {
	return strings.ToUpper(string(e.Provider)) + "_INTEGRATION_ERROR"
}

// ConfigurationError reports an unsupported or incomplete integration configuration.
// It is returned before any network call is made.
type ConfigurationError struct {
	Type   types.IntegrationType
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Type == "" {
		return "configuration error: " + e.Reason
	}
	return "configuration error for " + string(e.Type) + ": " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ErrorCode returns the API error code for err
func ErrorCode(err error) string {
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce.Code()
	}
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Code()
	}

	switch {
	case errors.Is(err, ErrFileValidation):
		return "FILE_VALIDATION_ERROR"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrAuthentication):
		return "AUTHENTICATION_ERROR"
	case errors.Is(err, ErrAuthorization):
		return "AUTHORIZATION_ERROR"
	case errors.Is(err, ErrConflict):
		return "DUPLICATE_ERROR"
	case errors.Is(err, ErrConfiguration):
		return "CONFIGURATION_ERROR"
	case errors.Is(err, ErrRetryExhausted):
		return "RETRY_EXHAUSTED"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMIT_EXCEEDED"
	default:
		return "INTERNAL_ERROR"
	}
}
