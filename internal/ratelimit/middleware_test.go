package ratelimit_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAllowsUnderLimit(t *testing.T) {
	limiter := newTestLimiter(t)
	rule := ratelimit.Rule{Prefix: "mw", Limit: 3, Window: time.Minute}

	handler := ratelimit.Middleware(limiter, rule, ratelimit.IPKeyFunc)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/papers", nil)
		req.RemoteAddr = "203.0.113.5:4567"
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	limiter := newTestLimiter(t)
	rule := ratelimit.Rule{Prefix: "mw-reject", Limit: 1, Window: time.Minute}

	reqID := func(*http.Request) string { return "req-123" }
	handler := ratelimit.MiddlewareWithRequestID(limiter, rule, ratelimit.IPKeyFunc, reqID)(okHandler())

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/papers", nil)
	req.RemoteAddr = "203.0.113.6:4567"
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/papers", nil)
	req.RemoteAddr = "203.0.113.6:4567"
	handler.ServeHTTP(second, req)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	var body model.APIError
	require.NoError(t, json.NewDecoder(second.Body).Decode(&body))
	assert.Equal(t, model.ErrCodeRateLimited, body.Error.Code)
	assert.Equal(t, "req-123", body.Meta.RequestID)
}

func TestMiddlewareSeparatesClients(t *testing.T) {
	limiter := newTestLimiter(t)
	rule := ratelimit.Rule{Prefix: "mw-clients", Limit: 1, Window: time.Minute}

	handler := ratelimit.Middleware(limiter, rule, ratelimit.IPKeyFunc)(okHandler())

	for _, addr := range []string{"203.0.113.7:1000", "203.0.113.8:1000"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/papers", nil)
		req.RemoteAddr = addr
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "first request from %s", addr)
	}
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	rule := ratelimit.Rule{Prefix: "mw-nil", Limit: 1, Window: time.Minute}
	handler := ratelimit.Middleware(nil, rule, ratelimit.IPKeyFunc)(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/papers", nil)
		req.RemoteAddr = "203.0.113.9:1000"
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddlewareEmptyKeySkips(t *testing.T) {
	limiter := newTestLimiter(t)
	rule := ratelimit.Rule{Prefix: "mw-skip", Limit: 1, Window: time.Minute}

	noKey := func(*http.Request) string { return "" }
	handler := ratelimit.Middleware(limiter, rule, noKey)(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/papers", nil)
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.10:51234"
	assert.Equal(t, "203.0.113.10", ratelimit.IPKeyFunc(req))

	req.RemoteAddr = "[2001:db8::1]:51234"
	assert.Equal(t, "[2001:db8::1]", ratelimit.IPKeyFunc(req))
}
