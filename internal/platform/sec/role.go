// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

package sec

// # User Roles

// Role represents the authorization level granted to an account.
type Role string

const (
	// Unrestricted access: triage, reassign, and delete reported issues
	RoleAdmin Role = "admin"

	// Resolver staff: can update the status of issues assigned to them
	RoleStaff Role = "staff"

	// Default role for citizens reporting issues
	RoleCitizen Role = "user"
)

// # Role Derivation

// Derive maps the server's boolean flags onto a single [Role].
// Admin wins over staff when both flags are set.
func Derive(isAdmin, isStaff bool) Role {
	switch {
	case isAdmin:
		return RoleAdmin
	case isStaff:
		return RoleStaff
	default:
		return RoleCitizen
	}
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r Role) level() int {

	// Linear scale (10-30) allows for future intermediate roles
	switch r {
	case RoleAdmin:
		return 30
	case RoleStaff:
		return 20
	case RoleCitizen:
		return 10
	default:
		return 0
	}
}
