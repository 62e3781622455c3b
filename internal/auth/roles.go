package auth

import "strings"

// Role is the single role tag carried by every account.
type Role string

const (
	RoleIT     Role = "IT"
	RoleAdmin  Role = "Admin"
	RoleClient Role = "Client"
)

// ParseRole matches the role name case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "it":
		return RoleIT, true
	case "admin":
		return RoleAdmin, true
	case "client":
		return RoleClient, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the canonical role names.
func (r Role) Valid() bool {
	switch r {
	case RoleIT, RoleAdmin, RoleClient:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// RoleSet is the set of roles an operation accepts.
type RoleSet []Role

// Roles are not hierarchical. IT is not implied to cover Admin; operations
// that historically accepted both use Staff explicitly.
var (
	ITOnly     = RoleSet{RoleIT}
	AdminOnly  = RoleSet{RoleAdmin}
	ClientOnly = RoleSet{RoleClient}
	Staff      = RoleSet{RoleIT, RoleAdmin}
)

// Contains reports whether role is a member of the set.
func (s RoleSet) Contains(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

func (s RoleSet) String() string {
	names := make([]string, len(s))
	for i, r := range s {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}
