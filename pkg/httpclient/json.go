package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// JSONRequest describes a JSON call made through DoJSON.
type JSONRequest struct {
	Method string
	URL    string
	// Header is merged into the outgoing request.
	Header http.Header
	// Body, when non-nil, is marshalled as the request body.
	Body any
}

// DoJSON sends req through doer and decodes a 2xx response into out, which
// may be nil. Non-2xx responses are returned as AppErrors via
// ParseResponseError; transport and breaker errors via MapError.
func DoJSON(ctx context.Context, doer Doer, serviceName string, req JSONRequest, out any) error {
	var body io.Reader = http.NoBody
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", serviceName, err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", serviceName, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := doer.Do(ctx, httpReq)
	if err != nil {
		return MapError(err, serviceName)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", serviceName, err)
	}
	return nil
}
