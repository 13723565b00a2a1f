package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "coldchain/pkg/domain-errors"
)

func TestJWTService(t *testing.T) {
	svc := NewJWTService("test-signing-key", "coldchain", "coldchain")

	t.Run("round trip binds the identity", func(t *testing.T) {
		token, err := svc.GenerateAccessToken("farmer-1", time.Hour)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "farmer-1", claims.Identity)
	})

	t.Run("expired token is unauthorized", func(t *testing.T) {
		token, err := svc.GenerateAccessToken("farmer-1", -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("token signed with a different key is rejected", func(t *testing.T) {
		other := NewJWTService("another-key", "coldchain", "coldchain")
		token, err := other.GenerateAccessToken("farmer-1", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.Error(t, err)
	})
}
