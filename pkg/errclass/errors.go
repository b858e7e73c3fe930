// Package errclass maps raw search backend failures into a closed taxonomy of
// classified errors carrying severity and retryability.
package errclass

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Common sentinel errors recognized by the classifier.
var (
	// ErrTokenInvalid is wrapped by providers when the backend rejects a continuation token.
	ErrTokenInvalid = errors.New("continuation token invalid")

	// ErrCircuitOpen is returned when the circuit breaker refuses a call.
	ErrCircuitOpen = errors.New("circuit open")
)

// Kind is a member of the closed error taxonomy.
type Kind string

const (
	KindTooManyRequests    Kind = "TOO_MANY_REQUESTS"
	KindServerError        Kind = "SERVER_ERROR"
	KindBadGateway         Kind = "BAD_GATEWAY"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindGatewayTimeout     Kind = "GATEWAY_TIMEOUT"
	KindAPIError           Kind = "API_ERROR"
	KindTimeout            Kind = "TIMEOUT"
	KindConnectionRefused  Kind = "CONNECTION_REFUSED"
	KindDNSError           Kind = "DNS_ERROR"
	KindTokenError         Kind = "TOKEN_ERROR"
	KindParsingError       Kind = "RESULTS_PARSING_ERROR"
	KindInvalidInput       Kind = "INVALID_INPUT"
	KindCircuitOpen        Kind = "CIRCUIT_OPEN"
	KindUnknown            Kind = "UNKNOWN_ERROR"
)

// Severity ranks how serious a classified error is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ClassifiedError is the typed record produced by Classify.
type ClassifiedError struct {
	Kind        Kind
	Severity    Severity
	Retryable   bool
	UserMessage string

	// Detail holds technical context. Cleared by Redact unless debug output is wanted.
	Detail any

	// RetryAfter is how long the backend (or the breaker) asked us to wait. Zero if unknown.
	RetryAfter time.Duration

	// Operation names the call that failed, when known.
	Operation string

	Err error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Operation, e.UserMessage)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// IsUpstreamFailure reports whether the error says something about backend
// health and should therefore count against the circuit breaker.
func (e *ClassifiedError) IsUpstreamFailure() bool {
	switch e.Kind {
	case KindTooManyRequests, KindServerError, KindBadGateway, KindServiceUnavailable,
		KindGatewayTimeout, KindTimeout, KindConnectionRefused, KindDNSError, KindUnknown:
		return true
	default:
		return false
	}
}

// Redact returns a copy without technical detail.
func (e *ClassifiedError) Redact() *ClassifiedError {
	c := *e
	c.Detail = nil
	return &c
}

// jsonError is the wire form of a ClassifiedError.
type jsonError struct {
	Kind              Kind     `json:"kind"`
	Severity          Severity `json:"severity"`
	Retryable         bool     `json:"retryable"`
	Message           string   `json:"message"`
	Operation         string   `json:"operation,omitempty"`
	RetryAfterSeconds int      `json:"retry_after_seconds,omitempty"`
	Detail            any      `json:"detail,omitempty"`
}

// MarshalJSON renders the error for API responses. The wrapped cause is never
// serialized; Detail only when present.
func (e *ClassifiedError) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonError{
		Kind:              e.Kind,
		Severity:          e.Severity,
		Retryable:         e.Retryable,
		Message:           e.UserMessage,
		Operation:         e.Operation,
		RetryAfterSeconds: e.RetryAfterSeconds(),
		Detail:            e.Detail,
	})
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (e *ClassifiedError) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// WithOperation returns a copy tagged with the failing operation.
func (e *ClassifiedError) WithOperation(op string) *ClassifiedError {
	c := *e
	c.Operation = op
	return &c
}

// StatusError is a raw HTTP failure reported by a provider.
type StatusError struct {
	StatusCode int
	Status     string
	RetryAfter time.Duration
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("search backend returned %s", e.Status)
	}
	return fmt.Sprintf("search backend returned status %d", e.StatusCode)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// InputError reports a field-level input violation.
type InputError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewInputError classifies a field violation directly.
func NewInputError(field, reason string) *ClassifiedError {
	return Classify(&InputError{Field: field, Reason: reason})
}

// NewCircuitOpen builds the classified error returned while the breaker is open.
func NewCircuitOpen(operation string, retryAfter time.Duration) *ClassifiedError {
	return &ClassifiedError{
		Kind:        KindCircuitOpen,
		Severity:    SeverityMedium,
		Retryable:   false,
		UserMessage: circuitOpenMessage(retryAfter),
		RetryAfter:  retryAfter,
		Operation:   operation,
		Err:         ErrCircuitOpen,
	}
}

// As extracts a ClassifiedError from an error chain.
func As(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
