// Package directory is the gate chain's read-only view of accounts,
// organization memberships and project ownership.
package directory

import (
	"context"

	"github.com/client-portal/portal/internal/auth"
)

// Account is the live state of a user account.
type Account struct {
	ID       string
	Email    string
	Name     string
	Role     auth.Role
	IsActive bool
}

// Membership is a user's standing in one organization.
type Membership struct {
	OrganizationID string
	UserID         string
	Role           auth.Role
	IsActive       bool
}

// ProjectOwnership is the ownership record the resource gate decides on.
type ProjectOwnership = auth.ProjectOwnership

// Directory answers the lookups the gates need. Absence is reported as a nil
// result (or "" for the preference) with a nil error; a non-nil error always
// means the lookup itself failed.
type Directory interface {
	GetAccount(ctx context.Context, userID string) (*Account, error)
	GetOrganizationPreference(ctx context.Context, userID string) (string, error)
	GetMembership(ctx context.Context, organizationID, userID string) (*Membership, error)
	GetProjectOwnership(ctx context.Context, projectID string) (*ProjectOwnership, error)
}
