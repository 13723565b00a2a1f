package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown product holds zero", func(t *testing.T) {
		ledger := NewInMemory()
		held, err := ledger.Balance(ctx, "prod-1")
		require.NoError(t, err)
		assert.Zero(t, held)
	})

	t.Run("credits accumulate", func(t *testing.T) {
		ledger := NewInMemory()
		require.NoError(t, ledger.Credit(ctx, "prod-1", 300))
		require.NoError(t, ledger.Credit(ctx, "prod-1", 200))

		held, err := ledger.Balance(ctx, "prod-1")
		require.NoError(t, err)
		assert.Equal(t, int64(500), held)
	})

	t.Run("negative credits are rejected, zero is a no-op", func(t *testing.T) {
		ledger := NewInMemory()
		assert.Error(t, ledger.Credit(ctx, "prod-1", -100))

		require.NoError(t, ledger.Credit(ctx, "prod-1", 0))
		held, err := ledger.Balance(ctx, "prod-1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), held)
	})

	t.Run("debit all zeroes the balance and returns it", func(t *testing.T) {
		ledger := NewInMemory()
		require.NoError(t, ledger.Credit(ctx, "prod-1", 500))

		taken, err := ledger.DebitAll(ctx, "prod-1")
		require.NoError(t, err)
		assert.Equal(t, int64(500), taken)

		held, err := ledger.Balance(ctx, "prod-1")
		require.NoError(t, err)
		assert.Zero(t, held)
	})

	t.Run("debit all on an empty balance returns zero", func(t *testing.T) {
		ledger := NewInMemory()
		taken, err := ledger.DebitAll(ctx, "prod-1")
		require.NoError(t, err)
		assert.Zero(t, taken)
	})
}
