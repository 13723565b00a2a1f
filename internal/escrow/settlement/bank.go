package settlement

import (
	"context"
	"sync"

	id "coldchain/pkg/domain"
)

// Bank is an in-process account ledger implementing Gateway. Development
// deployments and tests use it to observe payouts; production wires a real
// payment provider behind the same interface.
type Bank struct {
	mu       sync.Mutex
	accounts map[id.Identity]int64
}

func NewBank() *Bank {
	return &Bank{accounts: make(map[id.Identity]int64)}
}

func (b *Bank) Transfer(_ context.Context, to id.Identity, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[to] += amount
	return nil
}

// BalanceOf returns the funds settled to an identity so far.
func (b *Bank) BalanceOf(identity id.Identity) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[identity]
}
