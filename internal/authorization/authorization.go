package authorization

import (
	"casedesk/internal/config"
)

// Permission names a single administrative capability.
type Permission string

const (
	PermissionReadUsers   Permission = "read_users"
	PermissionManageUsers Permission = "manage_users"
	PermissionAdminRead   Permission = "admin_read"
	PermissionAdminWrite  Permission = "admin_write"
)

// PermissionSet is the capability set attached to a caller.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Caller describes the authenticated principal behind a request.
type Caller struct {
	UserID      int64
	Login       string
	IsAdmin     bool
	Permissions PermissionSet
}

// Authorizer evaluates capabilities per request. Administrators implicitly
// hold every permission.
type Authorizer struct {
	authMode config.AuthMode
}

func NewAuthorizer(authMode config.AuthMode) Authorizer {
	return Authorizer{authMode: authMode}
}

func (a *Authorizer) Allowed(caller Caller, perm Permission) bool {
	if caller.IsAdmin {
		return true
	}
	return caller.Permissions.Has(perm)
}

// LocalUserManagement reports whether user credentials are managed by this
// service. When an external identity provider owns the accounts, user
// mutation endpoints must refuse to write.
func (a *Authorizer) LocalUserManagement() bool {
	return a.authMode == config.AuthModeLocal
}

// PermissionsForUser derives the default capability set for a stored user.
// Non-admin users can read the directory but not change it.
func PermissionsForUser(isAdmin bool) PermissionSet {
	if isAdmin {
		return NewPermissionSet(PermissionReadUsers, PermissionManageUsers, PermissionAdminRead, PermissionAdminWrite)
	}
	return NewPermissionSet(PermissionReadUsers)
}
