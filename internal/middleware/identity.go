package middleware

// identity.go provides the user identity helper shared by the rate
// limiter and other middleware. JWTAuth stores the raw "sub" claim in
// the context under "user_id" without normalizing its type, so all
// plausible representations are handled here.

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// userID returns the authenticated member's ID as a string, or "anon"
// when the request carries no identity.  When the context value is not
// set yet (the rate limiter is global middleware and runs before
// JWTAuth), the subject is read from the Authorization header instead.
func userID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		// JWT numeric claims decode as float64.
		return strconv.FormatUint(uint64(v), 10)
	}
	return bearerSubject(c)
}

// bearerSubject extracts the "sub" claim from a bearer token without
// verifying its signature.  For a rate-limit key an unverified claim
// is enough: forging one only moves the caller into a different
// bucket, and signature checks still happen in JWTAuth.
func bearerSubject(c echo.Context) string {
	const prefix = "Bearer "
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return "anon"
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimPrefix(auth, prefix), claims); err != nil {
		return "anon"
	}
	switch sub := claims["sub"].(type) {
	case string:
		if sub != "" {
			return sub
		}
	case float64:
		return strconv.FormatUint(uint64(sub), 10)
	}
	return "anon"
}
