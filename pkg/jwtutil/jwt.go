package jwtutil

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"taskhub-service/pkg/config"
)

// Claims carries the session identity: who the user is, which tenant the
// session is scoped to (empty for super admins) and the user's role.
type Claims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 session tokens. The key and expiry
// come from configuration; nothing here reads the environment.
type Signer struct {
	secret []byte
	expiry time.Duration
}

// NewSigner builds a Signer from JWT configuration.
func NewSigner(cfg *config.JWTConfig) *Signer {
	return &Signer{
		secret: []byte(cfg.SigningKey),
		expiry: time.Duration(cfg.ExpirationHours) * time.Hour,
	}
}

// Expiry returns the configured token lifetime.
func (s *Signer) Expiry() time.Duration {
	return s.expiry
}

// Generate creates a signed token for the given identity.
func (s *Signer) Generate(userID, tenantID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and verifies a token, returning its claims.
func (s *Signer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
