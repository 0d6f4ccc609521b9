// Package auth - principal.go defines the per-request identity and the pure
// decisions the gates apply to it.
package auth

import "context"

// Principal is the verified identity attached to one request. It is built once
// by the identity resolver from the live account record and never mutated.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   Role
	// CurrentOrganizationID comes from the token claim or the stored preference.
	// Empty means none; membership is not implied and is verified separately.
	CurrentOrganizationID string
}

// HasCurrentOrganization reports whether an organization could be resolved.
func (p Principal) HasCurrentOrganization() bool {
	return p.CurrentOrganizationID != ""
}

// OrganizationAccess is the verified membership for the organization a request
// targets. Role is the membership role, independent of Principal.Role.
type OrganizationAccess struct {
	OrganizationID string
	Role           Role
}

type principalContextKey struct{}

type organizationAccessContextKey struct{}

type projectContextKey struct{}

// WithPrincipal returns a child context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal attached by the identity resolver.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// WithOrganizationAccess returns a child context carrying access.
func WithOrganizationAccess(ctx context.Context, access OrganizationAccess) context.Context {
	return context.WithValue(ctx, organizationAccessContextKey{}, access)
}

// OrganizationAccessFromContext returns the membership attached by the organization gate.
func OrganizationAccessFromContext(ctx context.Context) (OrganizationAccess, bool) {
	access, ok := ctx.Value(organizationAccessContextKey{}).(OrganizationAccess)
	return access, ok
}

// ProjectOwnership is the ownership record the resource gate decides on.
type ProjectOwnership struct {
	ProjectID               string
	OwnerUserID             string
	AssignedDeveloperUserID *string
}

// WithProject returns a child context carrying the loaded ownership record.
func WithProject(ctx context.Context, project ProjectOwnership) context.Context {
	return context.WithValue(ctx, projectContextKey{}, project)
}

// ProjectFromContext returns the ownership record attached by the project gate.
// It is absent for admins, whose access is granted without a lookup.
func ProjectFromContext(ctx context.Context) (ProjectOwnership, bool) {
	project, ok := ctx.Value(projectContextKey{}).(ProjectOwnership)
	return project, ok
}

// CheckRole applies the global role gate.
func CheckRole(p *Principal, allowed RoleSet) error {
	if p == nil {
		return Unauthenticated(MsgAuthenticationRequired, nil)
	}
	if !allowed.Contains(p.Role) {
		return Forbidden(MsgInsufficientPermissions)
	}
	return nil
}

// CheckOrganizationRole applies the role gate to the organization-scoped role.
// A nil access means the organization gate did not run first.
func CheckOrganizationRole(access *OrganizationAccess, allowed RoleSet) error {
	if access == nil {
		return Unauthenticated(MsgOrganizationContextRequired, nil)
	}
	if !allowed.Contains(access.Role) {
		return Forbidden(MsgInsufficientPermissions)
	}
	return nil
}

// CheckProjectAccess is CheckProjectOwnership over a loaded record.
func CheckProjectAccess(p Principal, project ProjectOwnership) error {
	return CheckProjectOwnership(p, project.OwnerUserID, project.AssignedDeveloperUserID)
}

// CheckProjectOwnership decides project access from ownership data alone.
// Admins are handled before ownership is loaded and never reach this check.
func CheckProjectOwnership(p Principal, ownerUserID string, assignedDeveloperUserID *string) error {
	switch p.Role {
	case RoleCustomer:
		if p.UserID == ownerUserID {
			return nil
		}
	case RoleDeveloper:
		if assignedDeveloperUserID != nil && p.UserID == *assignedDeveloperUserID {
			return nil
		}
	case RoleAdmin:
		return nil
	}
	return Forbidden(MsgProjectAccessDenied)
}
