package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/pos-register/pkg/errors"
)

func TestDoJSON_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"total":12.5}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":981,"total":12.50}`))
	}))
	defer server.Close()

	var out struct {
		ID    json.Number `json:"id"`
		Total any         `json:"total"`
	}
	err := DoJSON(context.Background(), New(fastConfig(0)), "store-api", JSONRequest{
		Method: http.MethodPost,
		URL:    server.URL,
		Header: http.Header{"Authorization": []string{"Bearer tok"}},
		Body:   map[string]float64{"total": 12.5},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "981", out.ID.String())
	assert.Equal(t, json.Number("12.50"), out.Total)
}

func TestDoJSON_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer server.Close()

	err := DoJSON(context.Background(), New(fastConfig(0)), "store-api", JSONRequest{
		Method: http.MethodGet,
		URL:    server.URL,
	}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestDoJSON_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := DoJSON(context.Background(), New(fastConfig(0)), "store-api", JSONRequest{Method: http.MethodGet, URL: url}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
}

func TestDoJSON_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var out map[string]any
	err := DoJSON(context.Background(), New(fastConfig(0)), "store-api", JSONRequest{Method: http.MethodGet, URL: server.URL}, &out)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode store-api response")
}
