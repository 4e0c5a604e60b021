package jwtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub-service/pkg/config"
)

func TestGenerateAndValidate(t *testing.T) {
	signer := NewSigner(&config.JWTConfig{SigningKey: "unit-test-key", ExpirationHours: 1})

	token, err := signer.Generate("user-1", "tenant-1", "tenant_admin")
	require.NoError(t, err)

	claims, err := signer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, "tenant_admin", claims.Role)
}

func TestValidate_WrongKey(t *testing.T) {
	issuer := NewSigner(&config.JWTConfig{SigningKey: "key-a", ExpirationHours: 1})
	verifier := NewSigner(&config.JWTConfig{SigningKey: "key-b", ExpirationHours: 1})

	token, err := issuer.Generate("user-1", "tenant-1", "user")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.Error(t, err)
}

func TestValidate_ExpiredToken(t *testing.T) {
	// A negative lifetime yields an already-expired token.
	signer := NewSigner(&config.JWTConfig{SigningKey: "unit-test-key", ExpirationHours: -1})

	token, err := signer.Generate("user-1", "tenant-1", "user")
	require.NoError(t, err)

	_, err = signer.Validate(token)
	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	signer := NewSigner(&config.JWTConfig{SigningKey: "unit-test-key", ExpirationHours: 1})

	_, err := signer.Validate("not.a.token")
	assert.Error(t, err)
}

func TestClaims_SuperAdminHasNoTenant(t *testing.T) {
	signer := NewSigner(&config.JWTConfig{SigningKey: "unit-test-key", ExpirationHours: 1})

	token, err := signer.Generate("root-1", "", "super_admin")
	require.NoError(t, err)

	claims, err := signer.Validate(token)
	require.NoError(t, err)
	assert.Empty(t, claims.TenantID)
	assert.Equal(t, "super_admin", claims.Role)
}
