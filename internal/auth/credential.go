package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Credential carries the caller's bearer credential through every service
// call. There is no process-wide session state; an empty token means the
// ReAI adapter falls back to its configured shared secret.
type Credential struct {
	Token string
}

// Empty reports whether the caller supplied no credential.
func (c Credential) Empty() bool { return c.Token == "" }

// ErrNoTenantClaim is returned when a token validates but carries no
// usable tenantId claim.
var ErrNoTenantClaim = errors.New("auth: token has no tenantId claim")

// TenantID validates the credential as an HS256 JWT signed with secret and
// extracts its tenantId claim.
func TenantID(c Credential, secret string) (int64, error) {
	if c.Empty() {
		return 0, errors.New("auth: missing credential")
	}
	tok, err := jwt.Parse(c.Token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("auth: invalid token: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrNoTenantClaim
	}
	switch v := claims["tenantId"].(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, ErrNoTenantClaim
	}
}
