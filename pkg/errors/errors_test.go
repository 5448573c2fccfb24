package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	for i, a := range sentinelStatus {
		for _, b := range sentinelStatus[i+1:] {
			assert.False(t, errors.Is(a.err, b.err), "%v should not match %v", a.err, b.err)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "held orders unreadable", Err: fmt.Errorf("redis: connection refused")}
	assert.Equal(t, "INTERNAL_ERROR: held orders unreadable: redis: connection refused", withCause.Error())

	bare := &AppError{Code: "ITEM_NOT_FOUND", Message: "product 9 is not in the cart"}
	assert.Equal(t, "ITEM_NOT_FOUND: product 9 is not in the cart", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("held order", "hold-7"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("quantity must be positive"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"validation", Validation("INSUFFICIENT_PAYMENT", "amount tendered is less than the total"), "INSUFFICIENT_PAYMENT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("invalid token"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("managers only"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("cart is empty"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"payment failed", PaymentFailed("order rejected"), "PAYMENT_FAILED", http.StatusUnprocessableEntity, ErrPaymentFailed},
		{"upstream", Upstream("store api unreachable", fmt.Errorf("dial tcp: refused")), "UPSTREAM_ERROR", http.StatusBadGateway, ErrUpstream},
		{"service unavailable", ServiceUnavailable("circuit open"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
		{"rate limited", RateLimited("slow down"), "RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("held order", "hold-7")
	assert.Equal(t, "held order with id hold-7 not found", err.Message)
}

func TestUpstream_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := Upstream("store api unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "refused")
}

func TestInternal_HidesCause(t *testing.T) {
	err := Internal(fmt.Errorf("nil map write"))

	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Contains(t, err.Error(), "nil map write")
}

func TestHTTPStatus_SentinelErrors(t *testing.T) {
	for _, s := range sentinelStatus {
		t.Run(s.err.Error(), func(t *testing.T) {
			assert.Equal(t, s.status, HTTPStatus(s.err))
			assert.Equal(t, s.status, HTTPStatus(fmt.Errorf("outer: %w", s.err)))
		})
	}
}

func TestHTTPStatus_AppErrorStatusWins(t *testing.T) {
	err := &AppError{Code: "ITEM_NOT_FOUND", Status: http.StatusNotFound, Err: ErrInvalidInput}
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("void item: %w", err)))
}

func TestHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("unknown")))
}
