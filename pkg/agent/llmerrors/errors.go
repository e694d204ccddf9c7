// Package llmerrors provides structured error classification for completion API calls.
package llmerrors

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorType represents different categories of completion errors.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting errors (429).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents rejected requests (400, 404, 413, 422).
	ErrorTypeBadPrompt
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown
	// ErrorTypeRetriesExhausted is returned once every attempt of a request failed.
	// It is the only completion error that halts a pipeline run.
	ErrorTypeRetriesExhausted
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	case ErrorTypeRetriesExhausted:
		return "retries_exhausted"
	default:
		return "invalid"
	}
}

// ErrMaxRetriesExceeded matches (via errors.Is) every ErrorTypeRetriesExhausted error.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

// maxBodyStub bounds how much of a response body is kept for logging.
const maxBodyStub = 512

// Error represents a classified completion error.
type Error struct {
	Err           error         // Wrapped underlying error
	Header        http.Header   // Response headers, when available
	Message       string        // Human-readable error message
	BodyStub      string        // First portion of response body (guards PII)
	RetryAfter    time.Duration // Provider retry-after hint, valid when HasRetryAfter
	Type          ErrorType     // Classified error type
	StatusCode    int           // HTTP status code if applicable
	HasRetryAfter bool          // A parsable retry-after header was sent (it may be 0)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMaxRetriesExceeded) match exhausted-retry errors.
func (e *Error) Is(target error) bool {
	return target == ErrMaxRetriesExceeded && e.Type == ErrorTypeRetriesExhausted
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTransient
	}
	return ErrorTypeUnknown
}

// StatusOf returns the HTTP status code carried by err, or 0.
func StatusOf(err error) int {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.StatusCode
	}
	return 0
}

// NewError creates a new classified error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new classified error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{
		Type:    errorType,
		Err:     cause,
		Message: message,
	}
}

// ClassifyStatus maps an HTTP status code to an error type.
func ClassifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ErrorTypeAuth
	case statusCode == http.StatusBadRequest, statusCode == http.StatusNotFound,
		statusCode == http.StatusRequestEntityTooLarge, statusCode == http.StatusUnprocessableEntity:
		return ErrorTypeBadPrompt
	case statusCode == http.StatusRequestTimeout, statusCode >= 500:
		return ErrorTypeTransient
	default:
		return ErrorTypeUnknown
	}
}

// FromStatus builds a classified error from an HTTP failure. The retry-after
// header is parsed for 429 responses; body is truncated to a stub.
func FromStatus(statusCode int, header http.Header, body string, cause error) *Error {
	e := &Error{
		Err:        cause,
		Header:     header,
		BodyStub:   bodyStub(body),
		Type:       ClassifyStatus(statusCode),
		StatusCode: statusCode,
	}
	if cause == nil {
		e.Message = fmt.Sprintf("status %d", statusCode)
	}
	if e.Type == ErrorTypeRateLimit && header != nil {
		e.RetryAfter, e.HasRetryAfter = ParseRetryAfter(header.Get("Retry-After"))
	}
	return e
}

// ParseRetryAfter parses a retry-after header given in (possibly fractional)
// seconds. It reports false for absent, unparsable or negative values.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(strings.TrimSuffix(value, "s"), 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// NewRetriesExhaustedError wraps the last failure once every attempt failed.
func NewRetriesExhaustedError(cause error, attempts int) *Error {
	return &Error{
		Type:       ErrorTypeRetriesExhausted,
		Err:        cause,
		StatusCode: StatusOf(cause),
		Message:    fmt.Sprintf("%s after %d attempts: %v", ErrMaxRetriesExceeded.Error(), attempts, cause),
	}
}

func bodyStub(body string) string {
	if len(body) <= maxBodyStub {
		return body
	}
	return body[:maxBodyStub] + "..."
}

// SanitizePrompt creates a safe representation of a prompt for logging.
// For large prompts, it returns first/last portions plus a hash of the full content.
func SanitizePrompt(prompt string, maxChars int) string {
	if len(prompt) <= maxChars {
		return prompt
	}

	halfMax := maxChars / 2
	if halfMax < 100 {
		halfMax = 100
	}
	if 2*halfMax >= len(prompt) {
		return prompt
	}

	first := prompt[:halfMax]
	last := prompt[len(prompt)-halfMax:]

	// Hash of the full prompt for correlation.
	hash := sha256.Sum256([]byte(prompt))
	hashStr := fmt.Sprintf("%x", hash)[:16]

	return fmt.Sprintf("%s...[%d chars, hash:%s]...%s",
		first, len(prompt), hashStr, last)
}
