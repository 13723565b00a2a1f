package domain

import (
	"fmt"
	"strings"
)

// Identity is the stable external identifier of a participant (producer,
// carrier, buyer, sensor gateway). It is opaque to the core: the role
// directory says what an identity may do, the identity itself carries no
// meaning beyond equality.
type Identity string

// ParseIdentity validates and returns an Identity.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("identity cannot be empty")
	}
	if len(s) > 128 {
		return "", fmt.Errorf("identity must be 128 characters or less")
	}
	return Identity(s), nil
}

func (i Identity) String() string {
	return string(i)
}

// IsNil returns true when no identity is set.
func (i Identity) IsNil() bool {
	return i == ""
}

// ProductID is the creator-assigned, globally unique product key. Immutable
// after creation.
type ProductID string

// ParseProductID validates and returns a ProductID.
func ParseProductID(s string) (ProductID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("product id cannot be empty")
	}
	if len(s) > 64 {
		return "", fmt.Errorf("product id must be 64 characters or less")
	}
	return ProductID(s), nil
}

func (p ProductID) String() string {
	return string(p)
}

// IsNil returns true when no product id is set.
func (p ProductID) IsNil() bool {
	return p == ""
}
