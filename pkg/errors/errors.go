package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors every register error wraps. HTTPStatus maps them to a
// status when an error reaches the API without an AppError around it.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrUpstream       = errors.New("upstream failure")
	ErrPaymentFailed  = errors.New("payment failed")
	ErrRateLimited    = errors.New("rate limited")
)

// sentinelStatus is checked in order; the first match wins.
var sentinelStatus = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrPaymentFailed, http.StatusUnprocessableEntity},
	{ErrUpstream, http.StatusBadGateway},
	{ErrServiceUnavail, http.StatusServiceUnavailable},
	{ErrRateLimited, http.StatusTooManyRequests},
}

// AppError is an error with the code and status the register API reports.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// NotFound creates a 404 error for a missing resource.
func NotFound(resource, id string) *AppError {
	return newError("NOT_FOUND", fmt.Sprintf("%s with id %s not found", resource, id), http.StatusNotFound, ErrNotFound)
}

// InvalidInput creates a 400 INVALID_INPUT error.
func InvalidInput(message string) *AppError {
	return Validation("INVALID_INPUT", message)
}

// Validation creates a 400 error carrying a specific code, so clients can
// tell apart rejections such as an insufficient tender and a bad card number.
func Validation(code, message string) *AppError {
	return newError(code, message, http.StatusBadRequest, ErrInvalidInput)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return newError("UNAUTHORIZED", message, http.StatusUnauthorized, ErrUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return newError("FORBIDDEN", message, http.StatusForbidden, ErrForbidden)
}

// Conflict creates a 409 error for a command the register cannot run in its
// current phase.
func Conflict(message string) *AppError {
	return newError("CONFLICT", message, http.StatusConflict, ErrConflict)
}

// Internal creates a 500 error. The cause is logged, never shown.
func Internal(err error) *AppError {
	return newError("INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError, err)
}

// PaymentFailed creates a 422 error for an order the back office refused.
func PaymentFailed(message string) *AppError {
	return newError("PAYMENT_FAILED", message, http.StatusUnprocessableEntity, ErrPaymentFailed)
}

// Upstream creates a 502 error for a failed back-office call.
func Upstream(message string, err error) *AppError {
	return newError("UPSTREAM_ERROR", message, http.StatusBadGateway, fmt.Errorf("%w: %w", ErrUpstream, err))
}

// ServiceUnavailable creates a 503 error, typically when a circuit breaker
// is open or held orders cannot be read.
func ServiceUnavailable(message string) *AppError {
	return newError("SERVICE_UNAVAILABLE", message, http.StatusServiceUnavailable, ErrServiceUnavail)
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	return newError("RATE_LIMITED", message, http.StatusTooManyRequests, ErrRateLimited)
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
