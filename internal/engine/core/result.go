package core

import "fmt"

// ErrorKind is the exhaustive set of error tags the Engine can return.
type ErrorKind string

const (
	ErrAuthorizationError       ErrorKind = "AuthorizationError"
	ErrUnknownTool              ErrorKind = "UnknownTool"
	ErrValidationError          ErrorKind = "ValidationError"
	ErrInsufficientPermissions  ErrorKind = "InsufficientPermissions"
	ErrRateLimitExceeded        ErrorKind = "RateLimitExceeded"
	ErrConfirmationRequired     ErrorKind = "ConfirmationRequired"
	ErrExecutionError           ErrorKind = "ExecutionError"
	ErrNotFound                 ErrorKind = "NotFound"
	ErrPermissionDenied         ErrorKind = "PermissionDenied"
	ErrNetworkError             ErrorKind = "NetworkError"
	ErrDatabaseError            ErrorKind = "DatabaseError"
	ErrAPIError                 ErrorKind = "APIError"
	ErrChainValidationError     ErrorKind = "ChainValidationError"
	ErrEmptyChain               ErrorKind = "EmptyChain"
	ErrArgumentGenerationError  ErrorKind = "ArgumentGenerationError"
	ErrChainStepFailed          ErrorKind = "ChainStepFailed"
	ErrChainExecutionError      ErrorKind = "ChainExecutionError"
)

// EngineError is the Engine's error variant. It implements error so it
// composes with errors.As/errors.Is.
type EngineError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Operation string    `json:"operation,omitempty"`
	Entity    string    `json:"entity,omitempty"`
	ID        string    `json:"id,omitempty"`
	Field     string    `json:"field,omitempty"`
	Code      string    `json:"code,omitempty"`
}

func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds an EngineError with just a kind and message.
func NewError(kind ErrorKind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message}
}

// WithOperation, WithEntity, WithID, WithField, WithCode attach optional
// context to an EngineError and return it for chaining.
func (e *EngineError) WithOperation(op string) *EngineError {
	e.Operation = op
	return e
}

func (e *EngineError) WithEntity(entity string) *EngineError {
	e.Entity = entity
	return e
}

func (e *EngineError) WithID(id string) *EngineError {
	e.ID = id
	return e
}

func (e *EngineError) WithField(field string) *EngineError {
	e.Field = field
	return e
}

func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// Result is the Engine's discriminated union: exactly one of Value or Err
// is set. Use Ok/Err to construct, never both fields directly.
type Result struct {
	Value any          `json:"value,omitempty"`
	Err   *EngineError `json:"error,omitempty"`
}

// Ok builds a successful Result.
func Ok(value any) Result {
	return Result{Value: value}
}

// ErrResult builds a failed Result from an EngineError.
func ErrResult(err *EngineError) Result {
	return Result{Err: err}
}

// Errf builds a failed Result from a kind and formatted message.
func Errf(kind ErrorKind, format string, args ...any) Result {
	return Result{Err: NewError(kind, fmt.Sprintf(format, args...))}
}

// IsOk reports whether the Result succeeded.
func (r Result) IsOk() bool {
	return r.Err == nil
}
