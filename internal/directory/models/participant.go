package models

import (
	"time"

	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
)

// Participant is one entry in the role directory: identity → role.
//
// Invariants:
//   - Identity is non-empty and unique (one entry per identity)
//   - Role is a known role other than none; none means "not registered"
//   - RegisteredAt is immutable after construction
//
// The core custody logic only ever reads participants; registration and
// removal are administrative CRUD on this package.
type Participant struct {
	Identity     id.Identity `json:"identity"`
	Role         id.Role     `json:"role"`
	DisplayName  string      `json:"display_name"`
	RegisteredAt time.Time   `json:"registered_at"`
}

func NewParticipant(identity id.Identity, role id.Role, displayName string, now time.Time) (*Participant, error) {
	if identity.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "participant identity cannot be empty")
	}
	if role == id.RoleNone {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "participant role must be a concrete role")
	}
	if len(displayName) > 256 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "display name must be 256 characters or less")
	}
	return &Participant{
		Identity:     identity,
		Role:         role,
		DisplayName:  displayName,
		RegisteredAt: now,
	}, nil
}
