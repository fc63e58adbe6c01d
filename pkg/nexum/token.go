package nexum

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims extracts the claim set of a JWT access token without
// verifying its signature. Diagnostic use only: the claims tell you who a
// token belongs to and when it expires, not whether it is genuine.
func TokenClaims(token string) (map[string]interface{}, error) {
	claims := jwt.MapClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	return claims, nil
}

// TokenExpiry returns the expiry time claimed by a JWT access token, again
// without signature verification. Tokens without an exp claim return a
// zero time.
func TokenExpiry(token string) (time.Time, error) {
	claims, err := TokenClaims(token)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := jwt.MapClaims(claims).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, nil
	}

	return exp.Time, nil
}

// TokenSubject returns the subject (or email claim when present) of a JWT
// access token without signature verification.
func TokenSubject(token string) (string, error) {
	claims, err := TokenClaims(token)
	if err != nil {
		return "", err
	}

	if email, ok := claims["email"].(string); ok && email != "" {
		return email, nil
	}

	sub, _ := claims["sub"].(string)

	return sub, nil
}
