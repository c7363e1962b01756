package api

import (
	"fmt"
	"strings"
)

// MaxCodeSize is the documented limit on submitted source code (1 MiB).
const MaxCodeSize = 1 << 20

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxCodeSize int
}

// DefaultValidationConfig returns the limits documented by the remote runner.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxCodeSize: MaxCodeSize,
	}
}

// ValidateRequest checks an ExecutionRequest before it is sent. It returns an
// *APIError describing the first failure, or nil if the request is valid.
func ValidateRequest(req *ExecutionRequest, cfg ValidationConfig) *APIError {
	if req == nil {
		return NewInvalidRequestError("", "request is required")
	}

	if !Supported(req.Language) {
		return NewUnsupportedLanguageError()
	}

	if cfg.MaxCodeSize > 0 && len(req.Code) > cfg.MaxCodeSize {
		return NewInvalidRequestError("code",
			fmt.Sprintf("code exceeds maximum size of %d bytes", cfg.MaxCodeSize))
	}

	return nil
}

// NewUnsupportedLanguageError reports a language the runner does not accept.
// The message matches the remote runner's own wording.
func NewUnsupportedLanguageError() *APIError {
	return NewInvalidRequestError("language",
		fmt.Sprintf("Language not supported. Available options: %s", strings.Join(LanguageValues(), ", ")))
}
