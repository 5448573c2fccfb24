package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/pos-register/pkg/errors"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// downstreamError accepts the error shapes the back office returns:
// {"error":{"code","message"}}, {"error":"..."} and {"message":"..."}.
type downstreamError struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

func (d downstreamError) parts() (code, message string, ok bool) {
	if len(d.Error) > 0 && string(d.Error) != "null" {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(d.Error, &nested) == nil && nested.Message != "" {
			return nested.Code, nested.Message, true
		}
		var flat string
		if json.Unmarshal(d.Error, &flat) == nil && flat != "" {
			return d.Code, flat, true
		}
	}
	if d.Message != "" {
		return d.Code, d.Message, true
	}
	return "", "", false
}

// ParseResponseError reads a non-2xx response and translates it into an
// AppError. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var downstream downstreamError
	if json.Unmarshal(body, &downstream) == nil {
		if code, message, ok := downstream.parts(); ok {
			return mapDownstreamError(resp.StatusCode, code, message, serviceName)
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return mapDownstreamError(resp.StatusCode, "", message, serviceName)
}

// MapError converts a transport or breaker error from a Doer into an AppError.
func MapError(err error, serviceName string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, ErrCircuitOpen) {
		return apperrors.ServiceUnavailable(serviceName + " is temporarily unavailable")
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return apperrors.Upstream(fmt.Sprintf("%s returned status %d", serviceName, serverErr.Status), err)
	}
	return apperrors.Upstream(serviceName+" request failed", err)
}

func mapDownstreamError(status int, code, message, serviceName string) error {
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName+" resource", message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusUnprocessableEntity:
		return apperrors.PaymentFailed(qualified)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualified)
	case status >= 500:
		return apperrors.Upstream(qualified, &ServerError{Status: status, Body: message})
	default:
		if code == "" {
			code = "UPSTREAM_ERROR"
		}
		return &apperrors.AppError{
			Code:    code,
			Message: qualified,
			Status:  http.StatusBadGateway,
			Err:     apperrors.ErrUpstream,
		}
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
