// Package settlement moves escrowed funds to external parties.
//
// The transfer is the one step of a lifecycle operation that can fail after
// local state was staged, so the product service treats every Gateway call
// as a potential failure point and only commits local mutations when the
// transfer succeeded.
package settlement

import (
	"context"

	id "coldchain/pkg/domain"
)

// Gateway pays out an amount (minor currency units) to a party outside the
// escrow system. Implementations must be all-or-nothing: on error, no funds
// moved.
type Gateway interface {
	Transfer(ctx context.Context, to id.Identity, amount int64) error
}
