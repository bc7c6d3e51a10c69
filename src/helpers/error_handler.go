package helpers

import (
	"errors"
	"fmt"

	"alphatrak-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

// ErrAPIFailure matches every error of the API taxonomy with errors.Is.
var ErrAPIFailure = errors.New("api failure")

// ErrUnknownPet is returned when a pet id has no coordinator.
var ErrUnknownPet = errors.New("unknown pet")

// ObserverError is the common base of AuthError, ConnectionError and ApiError.
// Status is the HTTP status code when one was received, 0 otherwise.
type ObserverError struct {
	Message string
	Status  int
	Cause   error
}

func (e *ObserverError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

func (e *ObserverError) Is(target error) bool {
	return target == ErrAPIFailure
}

// AuthError: credentials invalid or expired, or missing for the operation.
type AuthError struct{ ObserverError }

// ConnectionError: timeout or transport-level failure.
type ConnectionError struct{ ObserverError }

// ApiError: malformed response or unsuccessful response without data.
type ApiError struct{ ObserverError }

// -----------------------------------------------------------------------------

func NewAuthError(msg string, status int, cause error) *AuthError {
	return &AuthError{ObserverError{Message: msg, Status: status, Cause: cause}}
}

func NewConnectionError(msg string, cause error) *ConnectionError {
	return &ConnectionError{ObserverError{Message: msg, Cause: cause}}
}

func NewApiError(msg string, status int, cause error) *ApiError {
	return &ApiError{ObserverError{Message: msg, Status: status, Cause: cause}}
}

// -----------------------------------------------------------------------------

func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

func IsApiError(err error) bool {
	var target *ApiError
	return errors.As(err, &target)
}

// StatusCode extracts the HTTP status carried by a taxonomy error, or 0.
func StatusCode(err error) int {
	var auth *AuthError
	if errors.As(err, &auth) {
		return auth.Status
	}
	var api *ApiError
	if errors.As(err, &api) {
		return api.Status
	}
	return 0
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger     *logger.Logger
	ErrorCount int
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger(nil, "ErrorHandler")
	}
	return &ErrorHandler{Logger: log}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.ErrorCount = 0
}

// -----------------------------------------------------------------------------

// Handle logs a non-nil error with its context and counts it.
func (e *ErrorHandler) Handle(err error, context string) {
	if err == nil {
		return
	}
	e.ErrorCount++
	switch {
	case IsAuthError(err):
		e.Logger.Warning("Authentication problem in %s: %v", context, err)
	case errors.Is(err, ErrAPIFailure):
		e.Logger.Warning("API problem in %s: %v", context, err)
	default:
		e.Logger.Error("Error in %s: %v", context, err)
	}
}
