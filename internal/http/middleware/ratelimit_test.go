package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerIPBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	fixed := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	fixed = fixed.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	fixed := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	rl.Allow("10.0.0.1")

	fixed = fixed.Add(5 * time.Minute)
	rl.Allow("10.0.0.2")
	fixed = fixed.Add(6 * time.Minute)

	assert.Equal(t, 1, rl.Sweep())
	assert.Len(t, rl.limiters, 1)
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(0.5, 1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote, realIP string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/feed", nil)
		req.RemoteAddr = remote
		if realIP != "" {
			req.Header.Set("X-Real-Ip", realIP)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("192.0.2.1:1000", "").Code)
	limited := send("192.0.2.1:2000", "")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "2", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "rate limit exceeded")

	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:3000", "203.0.113.9").Code)
	assert.Equal(t, http.StatusOK, send("198.51.100.4:1000", "").Code)
}
