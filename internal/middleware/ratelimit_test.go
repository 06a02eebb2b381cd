package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/contactly/contactly/internal/ratelimit"
)

func newRateLimitedRouter(limiter ratelimit.Limiter, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/me", func(c *gin.Context) {
		// Stand-in for the auth guard.
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}, RateLimit(limiter), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{
		Requests: 2,
		Window:   time.Minute,
		Clock:    func() time.Time { return current },
	})
	r := newRateLimitedRouter(limiter, "user-a")

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// Window slides past the first recorded call.
	current = current.Add(61 * time.Second)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitRequiresIdentity(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{})
	r := newRateLimitedRouter(limiter, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	r := newRateLimitedRouter(nil, "user-a")

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}
