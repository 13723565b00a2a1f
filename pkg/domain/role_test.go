package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleNone, RoleFarmer, RoleTransporter, RoleWarehouse, RoleRetailer, RoleConsumer} {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	_, err := ParseRole("auditor")
	assert.Error(t, err)
}

func TestRolePermissions(t *testing.T) {
	buyers := map[Role]bool{
		RoleNone:        false,
		RoleFarmer:      false,
		RoleTransporter: false,
		RoleWarehouse:   true,
		RoleRetailer:    true,
		RoleConsumer:    true,
	}
	for role, want := range buyers {
		assert.Equal(t, want, role.CanBuy(), "CanBuy(%s)", role)
	}
	for role := range buyers {
		assert.Equal(t, role == RoleFarmer, role.CanCreate(), "CanCreate(%s)", role)
	}
}

func TestParseIdentity(t *testing.T) {
	identity, err := ParseIdentity("farmer-1")
	require.NoError(t, err)
	assert.Equal(t, Identity("farmer-1"), identity)
	assert.False(t, identity.IsNil())

	_, err = ParseIdentity("")
	assert.Error(t, err)
}

func TestParseProductID(t *testing.T) {
	productID, err := ParseProductID("prod-1")
	require.NoError(t, err)
	assert.Equal(t, ProductID("prod-1"), productID)

	_, err = ParseProductID("")
	assert.Error(t, err)
}
