package core

import "github.com/aishacrm/braid/infrastructure/errors"

// ServiceError converts an EngineError into the HTTP-status-bucketed
// ServiceError shape an external HTTP layer consumes at the boundary
// between the Engine and the transport that fronts it.
func (e *EngineError) ServiceError() *errors.ServiceError {
	if e == nil {
		return nil
	}

	var se *errors.ServiceError
	switch e.Kind {
	case ErrAuthorizationError:
		se = errors.Unauthorized(e.Message)
	case ErrPermissionDenied:
		se = errors.Forbidden(e.Message)
	case ErrInsufficientPermissions:
		se = errors.InsufficientRole(e.Message)
	case ErrConfirmationRequired:
		se = errors.ConfirmationRequired(e.Operation)
	case ErrValidationError:
		se = errors.InvalidInput(e.Field, e.Message)
	case ErrUnknownTool:
		se = errors.New(errors.ErrCodeUnknownTool, e.Message, 404)
	case ErrNotFound:
		se = errors.New(errors.ErrCodeNotFound, e.Message, 404)
	case ErrRateLimitExceeded:
		se = errors.New(errors.ErrCodeRateLimitExceeded, e.Message, 429)
	case ErrNetworkError:
		se = errors.New(errors.ErrCodeNetworkError, e.Message, 502)
	case ErrDatabaseError:
		se = errors.New(errors.ErrCodeDatabaseError, e.Message, 500)
	case ErrAPIError:
		se = errors.New(errors.ErrCodeExternalAPI, e.Message, 502)
	case ErrExecutionError:
		se = errors.New(errors.ErrCodeExecutionError, e.Message, 500)
	case ErrChainValidationError:
		se = errors.New(errors.ErrCodeChainValidation, e.Message, 400)
	case ErrEmptyChain:
		se = errors.New(errors.ErrCodeEmptyChain, e.Message, 400)
	case ErrArgumentGenerationError:
		se = errors.New(errors.ErrCodeArgumentGeneration, e.Message, 400)
	case ErrChainStepFailed:
		se = errors.New(errors.ErrCodeChainStepFailed, e.Message, 502)
	case ErrChainExecutionError:
		se = errors.New(errors.ErrCodeChainExecutionError, e.Message, 500)
	default:
		se = errors.New(errors.ErrCodeInternal, e.Message, 500)
	}

	if e.Entity != "" {
		se = se.WithDetails("entity", e.Entity)
	}
	if e.ID != "" {
		se = se.WithDetails("id", e.ID)
	}
	return se
}
