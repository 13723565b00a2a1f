package models

import (
	"time"

	id "coldchain/pkg/domain"
)

// Transition is one record of the per-product audit trail: who handed the
// product to whom, the state that resulted, and a free-text remark.
//
// The trail is append-only and immutable once written; its insertion order
// is the transition order because every lifecycle operation appends inside
// its own atomic unit.
type Transition struct {
	ProductID id.ProductID `json:"product_id"`
	// From is the identity handing over; empty on creation.
	From id.Identity `json:"from"`
	// To is the identity receiving custody or, for payments, the party the
	// funds are destined for.
	To     id.Identity `json:"to"`
	State  State       `json:"state"`
	Remark string      `json:"remark"`
	At     time.Time   `json:"at"`
}
