// Package errors provides unified, HTTP-status-bucketed error handling for Braid.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Authentication errors (1xxx)
	ErrCodeUnauthorized ErrorCode = "AUTH_1001"
	ErrCodeInvalidToken ErrorCode = "AUTH_1002"
	ErrCodeTokenExpired ErrorCode = "AUTH_1003"

	// Authorization errors (2xxx)
	ErrCodeForbidden             ErrorCode = "AUTHZ_2001"
	ErrCodeInsufficientRole      ErrorCode = "AUTHZ_2002"
	ErrCodeConfirmationRequired  ErrorCode = "AUTHZ_2003"

	// Validation errors (3xxx)
	ErrCodeInvalidInput     ErrorCode = "VAL_3001"
	ErrCodeMissingParameter ErrorCode = "VAL_3002"
	ErrCodeInvalidFormat    ErrorCode = "VAL_3003"
	ErrCodeOutOfRange       ErrorCode = "VAL_3004"

	// Resource errors (4xxx)
	ErrCodeNotFound      ErrorCode = "RES_4001"
	ErrCodeAlreadyExists ErrorCode = "RES_4002"
	ErrCodeConflict      ErrorCode = "RES_4003"
	ErrCodeUnknownTool   ErrorCode = "RES_4004"

	// Service errors (5xxx)
	ErrCodeInternal          ErrorCode = "SVC_5001"
	ErrCodeDatabaseError     ErrorCode = "SVC_5002"
	ErrCodeExternalAPI       ErrorCode = "SVC_5003"
	ErrCodeTimeout           ErrorCode = "SVC_5004"
	ErrCodeRateLimitExceeded ErrorCode = "SVC_5005"
	ErrCodeNetworkError      ErrorCode = "SVC_5006"
	ErrCodeExecutionError    ErrorCode = "SVC_5007"

	// Chain orchestration errors (6xxx)
	ErrCodeChainValidation       ErrorCode = "CHAIN_6001"
	ErrCodeEmptyChain            ErrorCode = "CHAIN_6002"
	ErrCodeArgumentGeneration    ErrorCode = "CHAIN_6003"
	ErrCodeChainStepFailed       ErrorCode = "CHAIN_6004"
	ErrCodeChainExecutionError   ErrorCode = "CHAIN_6005"

	// Cryptographic errors (7xxx), used by the internal service credential minter
	ErrCodeSigningFailed      ErrorCode = "CRYPTO_7001"
	ErrCodeVerificationFailed ErrorCode = "CRYPTO_7002"
)

// ServiceError represents a structured error with code, message, and HTTP status.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError.
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error with a ServiceError.
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Authentication Errors

func Unauthorized(message string) *ServiceError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func InvalidToken(err error) *ServiceError {
	return Wrap(ErrCodeInvalidToken, "Invalid authentication token", http.StatusUnauthorized, err)
}

func TokenExpired() *ServiceError {
	return New(ErrCodeTokenExpired, "Authentication token has expired", http.StatusUnauthorized)
}

// Authorization Errors

func Forbidden(message string) *ServiceError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

func InsufficientRole(required string) *ServiceError {
	return New(ErrCodeInsufficientRole, "Insufficient role for this operation", http.StatusForbidden).
		WithDetails("required_role", required)
}

func ConfirmationRequired(tool string) *ServiceError {
	return New(ErrCodeConfirmationRequired, "Explicit confirmation required for this operation", http.StatusForbidden).
		WithDetails("tool", tool)
}

// Validation Errors

func InvalidInput(field, reason string) *ServiceError {
	return New(ErrCodeInvalidInput, "Invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func MissingParameter(param string) *ServiceError {
	return New(ErrCodeMissingParameter, "Missing required parameter", http.StatusBadRequest).
		WithDetails("parameter", param)
}

func InvalidFormat(field, expected string) *ServiceError {
	return New(ErrCodeInvalidFormat, "Invalid format", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("expected", expected)
}

func OutOfRange(field string, minValue, maxValue interface{}) *ServiceError {
	return New(ErrCodeOutOfRange, "Value out of range", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("min", minValue).
		WithDetails("max", maxValue)
}

// Resource Errors

func NotFound(resource, id string) *ServiceError {
	return New(ErrCodeNotFound, "Resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func AlreadyExists(resource, id string) *ServiceError {
	return New(ErrCodeAlreadyExists, "Resource already exists", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

func UnknownTool(tool string) *ServiceError {
	return New(ErrCodeUnknownTool, fmt.Sprintf("unknown tool %q", tool), http.StatusNotFound).
		WithDetails("tool", tool)
}

// Service Errors

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

func DatabaseError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeDatabaseError, "Database operation failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

func ExternalAPIError(service string, err error) *ServiceError {
	return Wrap(ErrCodeExternalAPI, "External API call failed", http.StatusBadGateway, err).
		WithDetails("service", service)
}

func Timeout(operation string) *ServiceError {
	return New(ErrCodeTimeout, "Operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func NetworkError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeNetworkError, "Network error", http.StatusServiceUnavailable, err).
		WithDetails("operation", operation)
}

func ExecutionError(tool string, err error) *ServiceError {
	return Wrap(ErrCodeExecutionError, "Tool execution failed", http.StatusInternalServerError, err).
		WithDetails("tool", tool)
}

// Chain Orchestration Errors

func ChainValidation(chain string, reasons []string) *ServiceError {
	return New(ErrCodeChainValidation, "Chain validation failed", http.StatusBadRequest).
		WithDetails("chain", chain).
		WithDetails("reasons", reasons)
}

func EmptyChain(chain string) *ServiceError {
	return New(ErrCodeEmptyChain, "Dynamic chain produced no steps", http.StatusUnprocessableEntity).
		WithDetails("chain", chain)
}

func ArgumentGeneration(step string, err error) *ServiceError {
	return Wrap(ErrCodeArgumentGeneration, "Step argument generation failed", http.StatusUnprocessableEntity, err).
		WithDetails("step", step)
}

func ChainStepFailed(chain, step string, err error) *ServiceError {
	return Wrap(ErrCodeChainStepFailed, "Required chain step failed", http.StatusUnprocessableEntity, err).
		WithDetails("chain", chain).
		WithDetails("step", step)
}

func ChainExecutionError(chain string, err error) *ServiceError {
	return Wrap(ErrCodeChainExecutionError, "Chain execution failed", http.StatusInternalServerError, err).
		WithDetails("chain", chain)
}

// Cryptographic Errors

func SigningFailed(err error) *ServiceError {
	return Wrap(ErrCodeSigningFailed, "Signing failed", http.StatusInternalServerError, err)
}

func VerificationFailed(err error) *ServiceError {
	return Wrap(ErrCodeVerificationFailed, "Verification failed", http.StatusUnauthorized, err)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError.
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status code for an error.
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
