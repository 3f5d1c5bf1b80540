package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairweather/fairweather/internal/api/middleware"
	"github.com/fairweather/fairweather/internal/api/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestPerMinute(t *testing.T) {
	cfg := middleware.PerMinute(30)
	assert.Equal(t, 30, cfg.RequestLimit)
	assert.Equal(t, time.Minute, cfg.WindowLength)
}

func TestRateLimitByIP_AllowsUnderLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.PerMinute(5))(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := middleware.RequestID(middleware.RateLimitByIP(middleware.PerMinute(2))(okHandler()))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = "192.168.1.1:12345"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", last.Header().Get("Content-Type"))

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded. Please try again later.", body.Error)
	assert.NotEmpty(t, body.RequestID)
}

func TestRateLimitByIP_SeparateClients(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.PerMinute(1))(okHandler())

	for _, addr := range []string{"10.0.0.1:1000", "10.0.0.2:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, addr)
	}
}

func TestRateLimitByIP_Disabled(t *testing.T) {
	for _, limit := range []int{0, -1} {
		handler := middleware.RateLimitByIP(middleware.PerMinute(limit))(okHandler())
		for i := 0; i < 20; i++ {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.RemoteAddr = "192.168.1.1:12345"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)
		}
	}
}
