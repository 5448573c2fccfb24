package http

import (
	"net/http"
	"strings"

	"github.com/utafrali/pos-register/internal/storeapi"
	apperrors "github.com/utafrali/pos-register/pkg/errors"
	"github.com/utafrali/pos-register/pkg/httputil"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteError(w, r, &apperrors.AppError{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
					Status:  http.StatusUnsupportedMediaType,
					Err:     apperrors.ErrInvalidInput,
				}, nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ForwardBearer passes the cashier's bearer token on to back office calls
// made while serving the request.
func ForwardBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok && token != "" {
			r = r.WithContext(storeapi.WithBearerToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}
