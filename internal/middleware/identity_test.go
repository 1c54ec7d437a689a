package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/reformery/studio-booking/internal/config"
)

func identityContext(authorization string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/v1/slots/1", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func signedAccessToken(t *testing.T, sub uint64) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestUserIDPrefersContextValue(t *testing.T) {
	c := identityContext("")
	c.Set("user_id", float64(7)) // JWT numeric claims decode as float64
	if got := userID(c); got != "7" {
		t.Fatalf("userID = %q, want %q", got, "7")
	}
}

// Global middleware runs before JWTAuth populates the context, so the
// identity must come from the bearer token itself or every caller
// shares one rate-limit bucket.
func TestUserIDFallsBackToBearerSubject(t *testing.T) {
	c := identityContext("Bearer " + signedAccessToken(t, 42))
	if got := userID(c); got != "42" {
		t.Fatalf("userID = %q, want %q", got, "42")
	}
}

func TestUserIDAnonymousWithoutIdentity(t *testing.T) {
	if got := userID(identityContext("")); got != "anon" {
		t.Fatalf("userID without header = %q, want %q", got, "anon")
	}
	if got := userID(identityContext("Bearer not-a-jwt")); got != "anon" {
		t.Fatalf("userID with malformed token = %q, want %q", got, "anon")
	}
}

func TestRateKeyUsesBearerIdentity(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}
	c := identityContext("Bearer " + signedAccessToken(t, 42))
	if got := buildRateKey(cfg, c); got != "rl:user:42" {
		t.Fatalf("buildRateKey = %q, want %q", got, "rl:user:42")
	}
}
