package domain

import "fmt"

// Role describes what a registered identity is allowed to do in the custody
// chain. This is a domain primitive that enforces validity at parse time.
type Role string

const (
	RoleNone        Role = "none"
	RoleFarmer      Role = "farmer"
	RoleTransporter Role = "transporter"
	RoleWarehouse   Role = "warehouse"
	RoleRetailer    Role = "retailer"
	RoleConsumer    Role = "consumer"
)

var knownRoles = map[Role]bool{
	RoleNone:        true,
	RoleFarmer:      true,
	RoleTransporter: true,
	RoleWarehouse:   true,
	RoleRetailer:    true,
	RoleConsumer:    true,
}

// ParseRole validates and returns a Role. Returns an error for unknown roles.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !knownRoles[r] {
		return "", fmt.Errorf("unknown role: %s", s)
	}
	return r, nil
}

func (r Role) String() string {
	return string(r)
}

// CanBuy reports whether the role is permitted to pay for a listed product.
// Transporters move goods but never take the buying side of an escrow.
func (r Role) CanBuy() bool {
	switch r {
	case RoleRetailer, RoleConsumer, RoleWarehouse:
		return true
	}
	return false
}

// CanCreate reports whether the role may introduce new products.
func (r Role) CanCreate() bool {
	return r == RoleFarmer
}
