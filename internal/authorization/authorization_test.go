package authorization

import (
	"testing"

	"casedesk/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestAdminHoldsEveryPermission(t *testing.T) {
	authorizer := NewAuthorizer(config.AuthModeLocal)
	admin := Caller{UserID: 1, IsAdmin: true}

	for _, perm := range []Permission{PermissionReadUsers, PermissionManageUsers, PermissionAdminRead, PermissionAdminWrite} {
		assert.True(t, authorizer.Allowed(admin, perm), string(perm))
	}
}

func TestNonAdminNeedsExplicitPermission(t *testing.T) {
	authorizer := NewAuthorizer(config.AuthModeLocal)
	caller := Caller{UserID: 2, Permissions: NewPermissionSet(PermissionReadUsers)}

	assert.True(t, authorizer.Allowed(caller, PermissionReadUsers))
	assert.False(t, authorizer.Allowed(caller, PermissionManageUsers))
	assert.False(t, authorizer.Allowed(caller, PermissionAdminWrite))
}

func TestLocalUserManagementFollowsAuthMode(t *testing.T) {
	local := NewAuthorizer(config.AuthModeLocal)
	external := NewAuthorizer(config.AuthModeExternal)

	assert.True(t, local.LocalUserManagement())
	assert.False(t, external.LocalUserManagement())
}

func TestPermissionsForUser(t *testing.T) {
	admin := PermissionsForUser(true)
	assert.True(t, admin.Has(PermissionAdminWrite))

	regular := PermissionsForUser(false)
	assert.True(t, regular.Has(PermissionReadUsers))
	assert.False(t, regular.Has(PermissionManageUsers))
}
