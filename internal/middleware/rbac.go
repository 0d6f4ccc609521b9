// rbac.go implements the role, organization and project gates. Each gate reads
// what earlier middleware attached, either passes unchanged or aborts with one
// classified error, and attaches its own result only on success.

package middleware

import (
	"github.com/client-portal/portal/internal/auth"
	"github.com/client-portal/portal/internal/directory"
	"github.com/gin-gonic/gin"
)

// RequireRole allows the request when the principal's global role is in allowed
func RequireRole(allowed ...auth.Role) gin.HandlerFunc {
	set := auth.NewRoleSet(allowed...)
	return func(c *gin.Context) {
		if err := auth.CheckRole(principalPtr(c), set); err != nil {
			abortWithError(c, GateRole, err)
			return
		}
		allow(GateRole)
		c.Next()
	}
}

// RequireOrganizationAccess verifies active membership in the target
// organization: the organizationId path parameter, else the principal's current
// organization. On success the membership role is attached as OrganizationAccess.
func RequireOrganizationAccess(dir directory.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principalPtr(c)

		orgID := c.Param("organizationId")
		if orgID == "" && p != nil {
			orgID = p.CurrentOrganizationID
		}
		if orgID == "" {
			abortWithError(c, GateOrganization, auth.BadRequest(auth.MsgOrganizationIDRequired))
			return
		}
		if p == nil {
			abortWithError(c, GateOrganization, auth.Unauthenticated(auth.MsgAuthenticationRequired, nil))
			return
		}

		membership, err := dir.GetMembership(c.Request.Context(), orgID, p.UserID)
		if err != nil {
			abortWithError(c, GateOrganization, err)
			return
		}
		if membership == nil || !membership.IsActive {
			abortWithError(c, GateOrganization, auth.Forbidden(auth.MsgOrganizationAccessDenied))
			return
		}

		attachOrganizationAccess(c, auth.OrganizationAccess{
			OrganizationID: orgID,
			Role:           membership.Role,
		})
		allow(GateOrganization)
		c.Next()
	}
}

// RequireOrganizationRole checks the organization-scoped role attached by
// RequireOrganizationAccess, which must run earlier on the route.
func RequireOrganizationRole(allowed ...auth.Role) gin.HandlerFunc {
	set := auth.NewRoleSet(allowed...)
	return func(c *gin.Context) {
		var access *auth.OrganizationAccess
		if a, ok := GetOrganizationAccess(c); ok {
			access = &a
		}
		if err := auth.CheckOrganizationRole(access, set); err != nil {
			abortWithError(c, GateOrganizationRole, err)
			return
		}
		allow(GateOrganizationRole)
		c.Next()
	}
}

// RequireProjectAccess decides project access by ownership: admins always pass,
// customers must own the project, developers must be assigned to it. A missing
// project is reported as not found before ownership is checked.
func RequireProjectAccess(dir directory.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principalPtr(c)
		if p == nil {
			abortWithError(c, GateProject, auth.Unauthenticated(auth.MsgAuthenticationRequired, nil))
			return
		}

		projectID := c.Param("projectId")
		if projectID == "" {
			projectID = c.Param("id")
		}
		if projectID == "" {
			abortWithError(c, GateProject, auth.BadRequest(auth.MsgProjectIDRequired))
			return
		}

		if p.Role == auth.RoleAdmin {
			allow(GateProject)
			c.Next()
			return
		}

		project, err := dir.GetProjectOwnership(c.Request.Context(), projectID)
		if err != nil {
			abortWithError(c, GateProject, err)
			return
		}
		if project == nil {
			abortWithError(c, GateProject, auth.NotFound(auth.MsgProjectNotFound))
			return
		}

		if err := auth.CheckProjectAccess(*p, *project); err != nil {
			abortWithError(c, GateProject, err)
			return
		}

		attachProject(c, *project)
		allow(GateProject)
		c.Next()
	}
}
