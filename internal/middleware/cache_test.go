package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/reformery/studio-booking/internal/config"
)

func cacheTestConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{"GET": true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "cache",
	}
}

// unreachableRedis returns a client whose commands fail immediately,
// so the middleware takes its miss path without a running server.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func cacheTestRequest(authorization string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/v1/me/balance", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

// Responses behind an Authorization header can be per-member, and a
// cache hit short-circuits every later middleware including auth, so
// such requests must bypass the cache entirely.
func TestCacheSkipsAuthenticatedRequests(t *testing.T) {
	mw := NewRedisCache(cacheTestConfig(), unreachableRedis())
	called := false
	h := mw(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "member A's balance")
	})

	c, rec := cacheTestRequest("Bearer some-access-token")
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !called {
		t.Fatal("handler must run for authenticated requests")
	}
	if got := rec.Header().Get("X-Cache"); got != "" {
		t.Fatalf("authenticated request must not touch the cache, got X-Cache=%q", got)
	}
}

func TestCacheAppliesToAnonymousRequests(t *testing.T) {
	mw := NewRedisCache(cacheTestConfig(), unreachableRedis())
	h := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "public schedule")
	})

	c, rec := cacheTestRequest("")
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Fatalf("anonymous GET should go through the cache, got X-Cache=%q", got)
	}
}
