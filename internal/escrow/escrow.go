// Package escrow holds buyer payments per product until delivery is
// confirmed or an administrator refunds them.
package escrow

import (
	"context"

	id "coldchain/pkg/domain"
)

// Ledger is the per-product escrow balance. Amounts are minor currency
// units. Implementations keep every balance non-negative: Credit rejects
// negative amounts and DebitAll is the only way money leaves.
type Ledger interface {
	// Credit adds amount to the product's balance, creating the entry on
	// first payment. A zero amount is a no-op; zero-price listings produce
	// legitimate zero payments.
	Credit(ctx context.Context, productID id.ProductID, amount int64) error
	// DebitAll reads and zeroes the balance atomically, returning the amount
	// that was held.
	DebitAll(ctx context.Context, productID id.ProductID) (int64, error)
	// Balance reads the current balance. Unknown products hold zero.
	Balance(ctx context.Context, productID id.ProductID) (int64, error)
}
