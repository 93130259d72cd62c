package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// Failure causes surfaced by the document workflow. Every backend
// interaction maps to exactly one of these so the operator always knows
// which step broke.
var (
	ErrNetwork            = errors.New("network failure")
	ErrValidationRejected = errors.New("case rejected by validation")
	ErrPersist            = errors.New("field update rejected")
	ErrGeneration         = errors.New("document generation failed")
	ErrAuth               = errors.New("authentication failure")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NetworkFailure wraps a transport-level error: the request never
// completed, so nothing can be said about the backend's decision.
func NetworkFailure(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrNetwork, err),
		Message:    "no se pudo contactar al servicio de casos",
		Code:       "NETWORK_FAILURE",
		HTTPStatus: http.StatusBadGateway,
	}
}

// ValidationRejected indicates the backend considered the case
// structurally invalid, as opposed to merely incomplete.
func ValidationRejected(message string) *AppError {
	if message == "" {
		message = "el caso fue rechazado por la validación"
	}
	return &AppError{
		Err:        ErrValidationRejected,
		Message:    message,
		Code:       "VALIDATION_REJECTED",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// PersistFailure indicates the combined field update was rejected.
func PersistFailure(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrPersist, err),
		Message:    "no se pudieron guardar los datos del caso",
		Code:       "PERSIST_FAILURE",
		HTTPStatus: http.StatusBadGateway,
	}
}

// GenerationFailure indicates the petition document could not be produced.
func GenerationFailure(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrGeneration, err),
		Message:    "no se pudo generar el documento",
		Code:       "GENERATION_FAILURE",
		HTTPStatus: http.StatusBadGateway,
	}
}

// AuthFailure indicates a rejected or expired credential. Callers are
// expected to tear down the session when they see this.
func AuthFailure(message string) *AppError {
	if message == "" {
		message = "la sesión expiró o fue rechazada"
	}
	return &AppError{
		Err:        ErrAuth,
		Message:    message,
		Code:       "AUTH_FAILURE",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	if appErr, ok := err.(*AppError); ok {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}
