// Package admin holds the administrative capability.
//
// The capability is an explicit object passed to the transport layer instead
// of a global admin singleton: whoever presents the current secret holds the
// capability, and transferring it is rotating the secret. Only the bcrypt
// hash is kept in memory.
package admin

import (
	"sync"

	"coldchain/pkg/secrets"
)

// Capability verifies and rotates the administrative secret.
type Capability struct {
	mu   sync.RWMutex
	hash string
}

// NewCapability hashes and holds the initial secret.
func NewCapability(secret string) (*Capability, error) {
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, err
	}
	return &Capability{hash: hash}, nil
}

// Verify reports whether the presented secret currently holds the capability.
func (c *Capability) Verify(secret string) bool {
	if secret == "" {
		return false
	}
	c.mu.RLock()
	hash := c.hash
	c.mu.RUnlock()
	return secrets.Verify(secret, hash)
}

// Rotate generates a fresh secret, installs its hash, and returns the
// plaintext exactly once for handover to the new holder.
func (c *Capability) Rotate() (string, error) {
	secret, err := secrets.Generate()
	if err != nil {
		return "", err
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.hash = hash
	c.mu.Unlock()
	return secret, nil
}
