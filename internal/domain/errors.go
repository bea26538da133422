package domain

import "fmt"

// ErrorKind is the bounded taxonomy of error categories surfaced to clients.
// Every handler boundary maps internal errors onto one of these; no other
// kind is ever returned over the wire.
type ErrorKind string

const (
	ErrValidation ErrorKind = "validation"
	ErrAuth       ErrorKind = "auth"
	ErrNotFound   ErrorKind = "not_found"
	ErrConflict   ErrorKind = "conflict"
	ErrDeadState  ErrorKind = "dead_state"
	ErrRateLimit  ErrorKind = "rate_limited"
	ErrInternal   ErrorKind = "internal"
)

// APIError is the generic shape returned to every client. Detailed causes
// are logged server-side with a component tag and never propagated here.
type APIError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

// HTTPStatus maps a kind to its wire status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrValidation:
		return 400
	case ErrAuth:
		return 401
	case ErrNotFound:
		return 404
	case ErrConflict:
		return 409
	case ErrDeadState:
		return 410
	case ErrRateLimit:
		return 429
	default:
		return 500
	}
}

func NewAPIError(kind ErrorKind, message string, cause error) *APIError {
	return &APIError{Kind: kind, Message: message, cause: cause}
}

func Validation(msg string, cause error) *APIError { return NewAPIError(ErrValidation, msg, cause) }
func Auth(msg string, cause error) *APIError       { return NewAPIError(ErrAuth, msg, cause) }
func NotFound(msg string, cause error) *APIError   { return NewAPIError(ErrNotFound, msg, cause) }
func Conflict(msg string, cause error) *APIError   { return NewAPIError(ErrConflict, msg, cause) }
func DeadState(msg string, cause error) *APIError  { return NewAPIError(ErrDeadState, msg, cause) }
func RateLimited(msg string, cause error) *APIError {
	return NewAPIError(ErrRateLimit, msg, cause)
}
func Internal(msg string, cause error) *APIError { return NewAPIError(ErrInternal, msg, cause) }
