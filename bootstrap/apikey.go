package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APIKeyClaims is the JWT payload for an operator-issued API key. Adapted
// from kshinn-umbra-gateway/x402/token.go's Claims — the TokenID/
// RequestsTotal batch-credit fields have no equivalent in this spec (there
// is no per-token request budget here), so only subject/expiry/scope
// survive.
type APIKeyClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// APIKeyValidator issues and validates HMAC-signed operator API keys,
// mirroring TokenManager's IssueToken/ValidateToken shape without its
// TokenCounterStore dependency. Core builds one from Options.APIKeySecret
// when set; main.go uses it to gate the gateway itself via a bearer token,
// a concern separate from the per-route x402 payment flow the dispatcher
// already enforces.
type APIKeyValidator struct {
	secret []byte
}

// NewAPIKeyValidator builds a validator over an HMAC-SHA256 secret.
func NewAPIKeyValidator(secret []byte) *APIKeyValidator {
	return &APIKeyValidator{secret: secret}
}

// Issue signs a new API key for subject with the given scope and lifetime.
func (v *APIKeyValidator) Issue(subject, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &APIKeyClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: scope,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing api key: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies the JWT signature and expiry.
func (v *APIKeyValidator) Validate(tokenString string) (*APIKeyClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &APIKeyClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*APIKeyClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid api key claims")
	}
	return claims, nil
}
