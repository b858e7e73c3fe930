package errclass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// definition is the fixed severity/retryability/message triple of a kind.
type definition struct {
	severity  Severity
	retryable bool
	message   string
}

var definitions = map[Kind]definition{
	KindTooManyRequests:    {SeverityMedium, true, "The search backend is rate limiting requests. Please wait before trying again."},
	KindServerError:        {SeverityHigh, true, "The search backend encountered an internal error."},
	KindBadGateway:         {SeverityHigh, true, "The search backend returned a bad gateway response."},
	KindServiceUnavailable: {SeverityHigh, true, "The search backend is temporarily unavailable."},
	KindGatewayTimeout:     {SeverityHigh, true, "The search backend timed out upstream."},
	KindAPIError:           {SeverityMedium, false, "The search backend rejected the request."},
	KindTimeout:            {SeverityHigh, true, "The search request timed out."},
	KindConnectionRefused:  {SeverityHigh, true, "The connection to the search backend was refused."},
	KindDNSError:           {SeverityHigh, true, "The search backend host could not be resolved."},
	KindTokenError:         {SeverityLow, true, "The search session expired. A new session will be started."},
	KindParsingError:       {SeverityLow, false, "The search results could not be parsed."},
	KindInvalidInput:       {SeverityLow, false, "The search request contains invalid parameters."},
	KindCircuitOpen:        {SeverityMedium, false, "Searches are paused after repeated failures."},
	KindUnknown:            {SeverityMedium, false, "An unexpected error occurred while searching."},
}

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// retryAfterer is implemented by errors that know how long to back off.
type retryAfterer interface {
	RetryAfterDuration() time.Duration
}

// RetryAfterDuration implements retryAfterer.
func (e *StatusError) RetryAfterDuration() time.Duration {
	return e.RetryAfter
}

// Classify maps a raw failure into a ClassifiedError. It is pure and
// deterministic; an error that is already classified is returned as is.
// Classify(nil) returns nil.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	if ce, ok := As(err); ok {
		return ce
	}

	kind := kindOf(err)
	ce := newClassified(kind, err)

	var ra retryAfterer
	if errors.As(err, &ra) {
		ce.RetryAfter = ra.RetryAfterDuration()
	}

	switch kind {
	case KindTooManyRequests:
		ce.UserMessage = rateLimitMessage(ce.RetryAfter)
	case KindInvalidInput:
		var ie *InputError
		if errors.As(err, &ie) {
			ce.UserMessage = fmt.Sprintf("Invalid value for %s: %s.", ie.Field, ie.Reason)
		}
	case KindCircuitOpen:
		ce.UserMessage = circuitOpenMessage(ce.RetryAfter)
	}

	return ce
}

// IsRetryable classifies err and reports whether it may be retried.
func IsRetryable(err error) bool {
	ce := Classify(err)
	return ce != nil && ce.Retryable
}

func newClassified(kind Kind, err error) *ClassifiedError {
	def, ok := definitions[kind]
	if !ok {
		def = definitions[KindUnknown]
		kind = KindUnknown
	}

	detail := map[string]any{"error": err.Error()}
	var sc statusCoder
	if errors.As(err, &sc) {
		detail["status"] = sc.HTTPStatus()
	}

	return &ClassifiedError{
		Kind:        kind,
		Severity:    def.severity,
		Retryable:   def.retryable,
		UserMessage: def.message,
		Detail:      detail,
		Err:         err,
	}
}

// kindOf applies the classification rules in precedence order.
func kindOf(err error) Kind {
	var ie *InputError
	if errors.As(err, &ie) {
		return KindInvalidInput
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindCircuitOpen
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		if kind, ok := kindForStatus(sc.HTTPStatus()); ok {
			return kind
		}
	}

	msg := strings.ToLower(err.Error())

	if errors.Is(err, ErrTokenInvalid) || mentionsTokenInvalidity(msg) {
		return KindTokenError
	}
	if isTimeout(err, msg) {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		strings.Contains(msg, "econnrefused") || strings.Contains(msg, "connection refused") {
		return KindConnectionRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) ||
		strings.Contains(msg, "enotfound") || strings.Contains(msg, "no such host") || strings.Contains(msg, "dns") {
		return KindDNSError
	}
	if isParseFailure(err, msg) {
		return KindParsingError
	}

	return KindUnknown
}

func kindForStatus(code int) (Kind, bool) {
	switch {
	case code == http.StatusTooManyRequests:
		return KindTooManyRequests, true
	case code == http.StatusBadGateway:
		return KindBadGateway, true
	case code == http.StatusServiceUnavailable:
		return KindServiceUnavailable, true
	case code == http.StatusGatewayTimeout:
		return KindGatewayTimeout, true
	case code >= 500 && code < 600:
		return KindServerError, true
	case code >= 400 && code < 500:
		return KindAPIError, true
	default:
		return "", false
	}
}

func mentionsTokenInvalidity(msg string) bool {
	if !strings.Contains(msg, "vqd") && !strings.Contains(msg, "token") {
		return false
	}
	for _, word := range []string{"invalid", "expired", "rejected", "mismatch", "missing"} {
		if strings.Contains(msg, word) {
			return true
		}
	}
	return false
}

func isTimeout(err error, msg string) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "etimedout") ||
		strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded")
}

func isParseFailure(err error, msg string) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return true
	}
	return strings.Contains(msg, "parse") || strings.Contains(msg, "parsing")
}

func rateLimitMessage(retryAfter time.Duration) string {
	if retryAfter <= 0 {
		return definitions[KindTooManyRequests].message
	}
	return fmt.Sprintf("The search backend is rate limiting requests. Please wait %d seconds before trying again.",
		ceilSeconds(retryAfter))
}

func circuitOpenMessage(retryAfter time.Duration) string {
	if retryAfter <= 0 {
		return definitions[KindCircuitOpen].message
	}
	return fmt.Sprintf("Searches are paused after repeated failures. Try again in %d seconds.",
		ceilSeconds(retryAfter))
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
