package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/pos-register/pkg/logger"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func terminalRequest(terminal string) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/register/discount", nil)
	if terminal != "" {
		req = req.WithContext(logger.WithTerminalID(req.Context(), terminal))
	}
	return req
}

func TestRateLimit_BurstThenRejects(t *testing.T) {
	h := RateLimit(RateLimitConfig{PerMinute: 1, Burst: 3}, TerminalKey, quietLogger())(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, terminalRequest("lane-1"))
		assert.Equal(t, http.StatusOK, rec.Code, "attempt %d", i+1)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, terminalRequest("lane-1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_TerminalsAreIndependent(t *testing.T) {
	h := RateLimit(RateLimitConfig{PerMinute: 1, Burst: 1}, TerminalKey, quietLogger())(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, terminalRequest("lane-1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, terminalRequest("lane-1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, terminalRequest("lane-2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_EmptyKeyIsNotLimited(t *testing.T) {
	h := RateLimit(RateLimitConfig{PerMinute: 1, Burst: 1}, TerminalKey, quietLogger())(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, terminalRequest(""))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_RefillsOverTime(t *testing.T) {
	store := newBucketStore(RateLimitConfig{PerMinute: 60, Burst: 1})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	assert.True(t, store.allow("lane-1"))
	assert.False(t, store.allow("lane-1"))

	now = now.Add(time.Second)
	assert.True(t, store.allow("lane-1"))
}

func TestRateLimit_SweepsIdleBuckets(t *testing.T) {
	store := newBucketStore(RateLimitConfig{PerMinute: 10, Burst: 2, IdleTTL: time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.allow("lane-1")
	store.allow("lane-2")
	assert.Equal(t, 2, store.size())

	now = now.Add(2 * time.Minute)
	store.allow("lane-3")
	assert.Equal(t, 1, store.size())
}
