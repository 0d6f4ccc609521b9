// Package auth - roles.go defines the portal's coarse roles, which apply both
// account-wide (global role) and per organization membership (organization role).
package auth

import (
	"fmt"
	"strings"
)

// Role is a capability tier.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

// AllRoles returns every valid role
func AllRoles() []Role {
	return []Role{RoleCustomer, RoleDeveloper, RoleAdmin}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDeveloper, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a stored or user supplied value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

// RoleSet is an immutable set of allowed roles.
type RoleSet struct {
	roles map[Role]struct{}
}

// NewRoleSet builds a set from the given roles. Unknown roles are ignored.
func NewRoleSet(roles ...Role) RoleSet {
	set := RoleSet{roles: make(map[Role]struct{}, len(roles))}
	for _, r := range roles {
		if r.Valid() {
			set.roles[r] = struct{}{}
		}
	}
	return set
}

// Contains reports whether r is in the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s.roles[r]
	return ok
}

// Roles returns the members of the set in canonical order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s.roles))
	for _, r := range AllRoles() {
		if s.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	roles := s.Roles()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
