package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/client-portal/portal/internal/auth"
	"github.com/client-portal/portal/internal/db/repositories"
	"github.com/client-portal/portal/internal/telemetry"
	"github.com/google/uuid"
)

const (
	opGetAccount          = "get_account"
	opGetPreference       = "get_organization_preference"
	opGetMembership       = "get_membership"
	opGetProjectOwnership = "get_project_ownership"
)

// SQLDirectory implements Directory over the portal's Postgres repositories.
// Identifiers that are not UUIDs cannot exist in the schema and are reported as
// absent without a query.
type SQLDirectory struct {
	users    *repositories.UserRepository
	orgs     *repositories.OrganizationRepository
	projects *repositories.ProjectRepository
}

// NewSQLDirectory creates a directory over the given repositories
func NewSQLDirectory(users *repositories.UserRepository, orgs *repositories.OrganizationRepository, projects *repositories.ProjectRepository) *SQLDirectory {
	return &SQLDirectory{users: users, orgs: orgs, projects: projects}
}

// observe records latency for one lookup and counts it when it failed.
func observe(operation string, start time.Time, err error) {
	telemetry.DirectoryLookupDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.DirectoryLookupErrorsTotal.WithLabelValues(operation).Inc()
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GetAccount implements Directory
func (d *SQLDirectory) GetAccount(ctx context.Context, userID string) (acct *Account, err error) {
	if !validID(userID) {
		return nil, nil
	}
	defer func(start time.Time) { observe(opGetAccount, start, err) }(time.Now())

	user, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	role, err := auth.ParseRole(user.Role)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", user.ID, err)
	}

	return &Account{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Role:     role,
		IsActive: user.IsActive,
	}, nil
}

// GetOrganizationPreference implements Directory
func (d *SQLDirectory) GetOrganizationPreference(ctx context.Context, userID string) (orgID string, err error) {
	if !validID(userID) {
		return "", nil
	}
	defer func(start time.Time) { observe(opGetPreference, start, err) }(time.Now())

	pref, err := d.users.GetPreference(ctx, userID)
	if err != nil {
		return "", err
	}
	if pref == nil || pref.CurrentOrganizationID == nil {
		return "", nil
	}
	return *pref.CurrentOrganizationID, nil
}

// GetMembership implements Directory
func (d *SQLDirectory) GetMembership(ctx context.Context, organizationID, userID string) (m *Membership, err error) {
	if !validID(organizationID) || !validID(userID) {
		return nil, nil
	}
	defer func(start time.Time) { observe(opGetMembership, start, err) }(time.Now())

	member, err := d.orgs.GetMember(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, nil
	}

	role, err := auth.ParseRole(member.Role)
	if err != nil {
		return nil, fmt.Errorf("membership %s/%s: %w", member.OrganizationID, member.UserID, err)
	}

	return &Membership{
		OrganizationID: member.OrganizationID,
		UserID:         member.UserID,
		Role:           role,
		IsActive:       member.IsActive,
	}, nil
}

// GetProjectOwnership implements Directory
func (d *SQLDirectory) GetProjectOwnership(ctx context.Context, projectID string) (o *ProjectOwnership, err error) {
	if !validID(projectID) {
		return nil, nil
	}
	defer func(start time.Time) { observe(opGetProjectOwnership, start, err) }(time.Now())

	project, err := d.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, nil
	}

	return &ProjectOwnership{
		ProjectID:               project.ID,
		OwnerUserID:             project.OwnerUserID,
		AssignedDeveloperUserID: project.AssignedDeveloperUserID,
	}, nil
}
