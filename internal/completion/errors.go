package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the closed classification of a failed completion call.
type ErrorKind string

const (
	KindRateLimited    ErrorKind = "rate_limited"
	KindUnavailable    ErrorKind = "unavailable"
	KindTimeout        ErrorKind = "timeout"
	KindQuotaExhausted ErrorKind = "quota_exhausted"
	KindMalformed      ErrorKind = "malformed"
	KindTransport      ErrorKind = "transport"
	KindUpstream       ErrorKind = "upstream"
)

// Retryable is true for transient kinds the retry policy may repeat.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindUnavailable, KindTimeout:
		return true
	}
	return false
}

// Error is returned by every driver; callers classify on Kind, never on
// the message text.
type Error struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the kind from err, or "" if err is not a completion error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transient completion failure.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// IsQuotaExhausted reports whether err means the account is out of credit.
func IsQuotaExhausted(err error) bool {
	return KindOf(err) == KindQuotaExhausted
}

// classifyStatus maps a non-200 provider response to an error kind. body is
// inspected only for the provider's machine-readable error code.
func classifyStatus(status int, body []byte) ErrorKind {
	code := errorCode(body)
	switch {
	case code == "insufficient_quota" || code == "billing_hard_limit_reached" || status == http.StatusPaymentRequired:
		return KindQuotaExhausted
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusServiceUnavailable || status == 529:
		return KindUnavailable
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return KindTimeout
	}
	return KindUpstream
}

// transportError classifies a failure to complete the HTTP exchange.
func transportError(provider string, err error) *Error {
	kind := KindTransport
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Provider: provider, Err: err}
}
