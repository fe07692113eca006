// Package gatewayerr defines the gateway's closed error taxonomy.
//
// Grounded on types.Error / types.ErrorCode (_examples/BaSui01-agentflow/types/error.go):
// same Code/Message/Retryable/Cause shape, narrowed to the six kinds the
// gateway's failure semantics distinguish.
package gatewayerr

import "fmt"

// Kind is one of the six closed error categories the gateway produces.
type Kind string

const (
	// UnknownModel: request.Model did not resolve to a configured ModelConfig.
	UnknownModel Kind = "UNKNOWN_MODEL"
	// ValidationError: a malformed request, e.g. empty Messages.
	ValidationError Kind = "VALIDATION_ERROR"
	// RateLimited: the limiter could not admit the request within a bounded wait.
	RateLimited Kind = "RATE_LIMITED"
	// Transient: HTTP 429/5xx, network timeout, or connection failure. Retryable.
	Transient Kind = "TRANSIENT"
	// PermanentProvider: HTTP 4xx other than 429, invalid tool schema, etc.
	PermanentProvider Kind = "PERMANENT_PROVIDER"
	// Cancelled: worker stop or caller cancellation.
	Cancelled Kind = "CANCELLED"
)

// Error is the gateway's structured error type. All errors the gateway
// surfaces to a caller or writes to a log are *Error values.
type Error struct {
	Kind      Kind
	Message   string
	Provider  string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause and returns e for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithProvider attaches the originating provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithRetryable marks the error retryable or not.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err is a *Error marked Retryable.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Retryable
}

// KindOf extracts the Kind from err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

// IsCancelled reports whether err represents cooperative cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == Cancelled
}
