package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalix/vault/internal/auth"
	"github.com/signalix/vault/internal/model"
	"github.com/signalix/vault/internal/repo"
)

func TestRateLimiter_window(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 2)
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("ip:1"))
	assert.True(t, rl.Allow("ip:1"))
	assert.False(t, rl.Allow("ip:1"))
	assert.True(t, rl.Allow("ip:2"), "keys are limited independently")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("ip:1"), "old requests fall out of the window")
}

func TestRateLimiter_sweep(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 5)
	t.Cleanup(rl.Stop)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("ip:1")
	now = now.Add(3 * time.Minute)
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.requests)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 1)
	t.Cleanup(rl.Stop)
	h := RateLimitMiddleware(rl, GetIPKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login-otp", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}

func TestGetIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "ip:192.0.2.7", GetIPKey(req))
	req.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "ip:192.0.2.7", GetIPKey(req))
}

func TestAuthMiddleware(t *testing.T) {
	users := repo.NewMemoryUserRepo()
	require.NoError(t, users.Create(context.Background(), model.User{PhoneNumber: "555", Name: "Ana"}))
	jwtService := auth.NewJWTService("secret", time.Hour)

	h := AuthMiddleware(jwtService, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := GetUser(r.Context())
		require.True(t, ok)
		sid, _ := GetSessionID(r.Context())
		w.Header().Set("X-Phone", u.PhoneNumber)
		w.Header().Set("X-Session", sid)
		w.WriteHeader(http.StatusOK)
	}))

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer not-a-jwt").Code)

	ghost, err := jwtService.SignAccessToken("404", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+ghost).Code)

	token, err := jwtService.SignAccessToken("555", "sess-1")
	require.NoError(t, err)
	rec := call("Bearer " + token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "555", rec.Header().Get("X-Phone"))
	assert.Equal(t, "sess-1", rec.Header().Get("X-Session"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
