// Package auth signs and validates the JWTs used for admin sessions and
// for the short-lived maintenance-bypass flag set after an emergency token
// redemption.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "caption-server"

// BypassScope marks tokens that only exempt an identity from the
// maintenance gate. They carry no other privilege.
const BypassScope = "maintenance_bypass"

// DefaultBypassTTL bounds how long a redeemed emergency token keeps the
// gate open for its identity.
const DefaultBypassTTL = time.Hour

var ErrInvalidToken = errors.New("invalid token")

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Scope  string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

func GenerateToken(config JWTConfig, userID, email, role string) (string, error) {
	expiry := time.Duration(config.ExpiryHours) * time.Hour
	if config.ExpiryHours <= 0 {
		expiry = 24 * time.Hour
	}

	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// GenerateBypassToken signs a token that exempts identity from the
// maintenance gate until ttl elapses.
func GenerateBypassToken(secret, identity string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultBypassTTL
	}

	claims := Claims{
		Email: identity,
		Scope: BypassScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign bypass token: %w", err)
	}
	return signed, nil
}

func ValidateToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateBypassToken validates a maintenance-bypass token and returns the
// identity it exempts. Session tokens are rejected here and bypass tokens
// are rejected by the session middleware: the scopes do not overlap.
func ValidateBypassToken(secret, tokenString string) (string, error) {
	claims, err := ValidateToken(secret, tokenString)
	if err != nil {
		return "", err
	}
	if claims.Scope != BypassScope {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}
