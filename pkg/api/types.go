package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Language identifies a runtime supported by the remote runner.
type Language string

const (
	LanguagePython     Language = "py"
	LanguageJavaScript Language = "js"
)

// DefaultLanguage is selected when a visitor first opens the playground.
const DefaultLanguage = LanguagePython

// ExecutionRequest is the JSON payload posted to the remote runner.
// A request is built fresh for every submission and not modified afterwards.
type ExecutionRequest struct {
	Language Language `json:"language"`
	Code     string   `json:"code"`
	Input    string   `json:"input"`
}

// ExecutionResult is the payload carried inside an envelope body.
// Output and Error are pointers because the runner sends explicit nulls.
type ExecutionResult struct {
	Output        *string         `json:"output"`
	Error         *string         `json:"error"`
	ExecutionTime json.RawMessage `json:"executionTime,omitempty"`
}

// OutputText returns the output, or "" when the runner sent null.
func (r *ExecutionResult) OutputText() string {
	if r == nil || r.Output == nil {
		return ""
	}
	return *r.Output
}

// ErrorText returns the error, or "" when the runner sent null.
func (r *ExecutionResult) ErrorText() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}

// Duration renders executionTime for display. The runner has sent both a
// string ("0.245s") and a bare number of seconds; null yields "".
func (r *ExecutionResult) Duration() string {
	if r == nil || len(r.ExecutionTime) == 0 {
		return ""
	}
	raw := bytes.TrimSpace(r.ExecutionTime)
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return fmt.Sprintf("%.3fs", f)
	}
	return ""
}

// Envelope is the outer object returned by the remote runner.
type Envelope struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

// ErrMalformedEnvelope is returned when an envelope or its body cannot be decoded.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// DecodeEnvelope parses raw response bytes into an Envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(env.Body) == 0 || bytes.Equal(bytes.TrimSpace(env.Body), []byte("null")) {
		return nil, fmt.Errorf("%w: missing body", ErrMalformedEnvelope)
	}
	return &env, nil
}

// Result unwraps the envelope body. The body is normally a JSON string that
// contains the encoded result; an inline JSON object is also accepted.
func (e *Envelope) Result() (*ExecutionResult, error) {
	raw := bytes.TrimSpace(e.Body)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing body", ErrMalformedEnvelope)
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: body: %v", ErrMalformedEnvelope, err)
		}
		raw = bytes.TrimSpace([]byte(text))
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedEnvelope)
	}

	var result ExecutionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrMalformedEnvelope, err)
	}
	return &result, nil
}

// NewEnvelope builds an envelope whose body is the JSON-encoded result,
// matching what the remote runner produces.
func NewEnvelope(statusCode int, result ExecutionResult) (*Envelope, error) {
	inner, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(string(inner))
	if err != nil {
		return nil, err
	}
	return &Envelope{StatusCode: statusCode, Body: body}, nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
