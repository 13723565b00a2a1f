package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapability(t *testing.T) {
	t.Run("verifies the initial secret", func(t *testing.T) {
		c, err := NewCapability("initial-secret")
		require.NoError(t, err)
		assert.True(t, c.Verify("initial-secret"))
		assert.False(t, c.Verify("wrong"))
		assert.False(t, c.Verify(""))
	})

	t.Run("rotation transfers the capability", func(t *testing.T) {
		c, err := NewCapability("initial-secret")
		require.NoError(t, err)

		next, err := c.Rotate()
		require.NoError(t, err)
		require.NotEmpty(t, next)
		assert.NotEqual(t, "initial-secret", next)

		assert.False(t, c.Verify("initial-secret"), "old holder loses the capability")
		assert.True(t, c.Verify(next))
	})

	t.Run("successive rotations yield distinct secrets", func(t *testing.T) {
		c, err := NewCapability("initial-secret")
		require.NoError(t, err)
		first, err := c.Rotate()
		require.NoError(t, err)
		second, err := c.Rotate()
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
		assert.False(t, c.Verify(first))
		assert.True(t, c.Verify(second))
	})
}
