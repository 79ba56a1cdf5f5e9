package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EmbeddedExpiry reads the exp claim from a JWT-shaped access token without
// verifying its signature. The value only sizes cookie lifetimes and must never
// be used to decide whether a caller is trusted.
func EmbeddedExpiry(accessToken string) (time.Time, bool) {
	if accessToken == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// remainingLifetime estimates how long accessToken stays usable, falling back
// to fallback when the token carries no readable expiry.
func remainingLifetime(accessToken string, now time.Time, fallback time.Duration) time.Duration {
	exp, ok := EmbeddedExpiry(accessToken)
	if !ok {
		return floorLifetime(fallback)
	}
	return floorLifetime(exp.Sub(now))
}

// AccessTokenLifetime estimates the remaining lifetime of an access token that
// was presented without an expires_in hint.
func AccessTokenLifetime(accessToken string, now time.Time) time.Duration {
	return remainingLifetime(accessToken, now, defaultAccessTokenLifetime)
}

const defaultAccessTokenLifetime = time.Hour
