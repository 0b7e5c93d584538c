package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The backend remains the authority; the value only schedules early refreshes.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
