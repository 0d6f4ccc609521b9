// handlers.go holds the portal endpoints that sit behind the gate chain. Each
// handler reads what the gates attached and never repeats an authorization
// decision.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/client-portal/portal/internal/auth"
	"github.com/client-portal/portal/internal/db/models"
	"github.com/client-portal/portal/internal/db/repositories"
	"github.com/client-portal/portal/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Version is reported by /version; cmd/server overrides it at build time.
var Version = "0.1.0"

// SchemaVersionFunc reports the applied migration version.
type SchemaVersionFunc func() (version uint, dirty bool, err error)

// Handlers serves the authenticated portal endpoints
type Handlers struct {
	orgRepo     *repositories.OrganizationRepository
	projectRepo *repositories.ProjectRepository
}

// NewHandlers creates the portal handlers
func NewHandlers(orgRepo *repositories.OrganizationRepository, projectRepo *repositories.ProjectRepository) *Handlers {
	return &Handlers{orgRepo: orgRepo, projectRepo: projectRepo}
}

func principalJSON(p auth.Principal) gin.H {
	body := gin.H{
		"id":    p.UserID,
		"email": p.Email,
		"name":  p.Name,
		"role":  p.Role,
	}
	if p.HasCurrentOrganization() {
		body["current_organization_id"] = p.CurrentOrganizationID
	}
	return body
}

func projectJSON(p auth.ProjectOwnership) gin.H {
	body := gin.H{
		"id":            p.ProjectID,
		"owner_user_id": p.OwnerUserID,
	}
	if p.AssignedDeveloperUserID != nil {
		body["assigned_developer_user_id"] = *p.AssignedDeveloperUserID
	}
	return body
}

func internalError(c *gin.Context, msg string, err error) {
	slog.Error(msg, "error", err, "request_id", middleware.GetRequestID(c), "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, middleware.ErrorResponse("internal server error"))
}

// Me returns the caller's live identity and active organization memberships.
// GET /api/v1/me
func (h *Handlers) Me(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.ErrorResponse(auth.MsgAuthenticationRequired))
		return
	}

	memberships, err := h.orgRepo.ListUserMemberships(c.Request.Context(), p.UserID)
	if err != nil {
		internalError(c, "failed to list memberships", err)
		return
	}
	if memberships == nil {
		memberships = []*models.UserMembership{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          principalJSON(p),
		"organizations": memberships,
	})
}

// GetOrganization returns the organization the organization gate resolved,
// either from the path or from the caller's current organization.
// GET /api/v1/organizations/current
// GET /api/v1/organizations/:organizationId
func (h *Handlers) GetOrganization(c *gin.Context) {
	access, ok := middleware.GetOrganizationAccess(c)
	if !ok {
		c.JSON(http.StatusForbidden, middleware.ErrorResponse(auth.MsgOrganizationContextRequired))
		return
	}

	org, err := h.orgRepo.GetByID(c.Request.Context(), access.OrganizationID)
	if err != nil {
		internalError(c, "failed to get organization", err)
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse("organization not found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization": org,
		"role":         access.Role,
	})
}

// OrganizationSettings is reachable only by organization admins.
// GET /api/v1/organizations/:organizationId/settings
func (h *Handlers) OrganizationSettings(c *gin.Context) {
	access, ok := middleware.GetOrganizationAccess(c)
	if !ok {
		c.JSON(http.StatusForbidden, middleware.ErrorResponse(auth.MsgOrganizationContextRequired))
		return
	}

	org, err := h.orgRepo.GetByID(c.Request.Context(), access.OrganizationID)
	if err != nil {
		internalError(c, "failed to get organization", err)
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse("organization not found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization_id": org.ID,
		"name":            org.Name,
		"display_name":    org.DisplayName,
		"can_manage":      true,
	})
}

// GetProject returns a project the ownership gate admitted.
// GET /api/v1/projects/:projectId
func (h *Handlers) GetProject(c *gin.Context) {
	if project, ok := middleware.GetProject(c); ok {
		c.JSON(http.StatusOK, gin.H{"project": projectJSON(project)})
		return
	}

	// Admins pass RequireProjectAccess without a lookup.
	projectID := c.Param("projectId")
	if _, err := uuid.Parse(projectID); err != nil {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse(auth.MsgProjectNotFound))
		return
	}

	project, err := h.projectRepo.GetByID(c.Request.Context(), projectID)
	if err != nil {
		internalError(c, "failed to get project", err)
		return
	}
	if project == nil {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse(auth.MsgProjectNotFound))
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": projectJSON(auth.ProjectOwnership{
		ProjectID:               project.ID,
		OwnerUserID:             project.OwnerUserID,
		AssignedDeveloperUserID: project.AssignedDeveloperUserID,
	})})
}

// DeveloperAssignments lists the caller's assigned projects. Admins see every project.
// GET /api/v1/developer/assignments
func (h *Handlers) DeveloperAssignments(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.ErrorResponse(auth.MsgAuthenticationRequired))
		return
	}

	var (
		projects []models.Project
		err      error
	)
	if p.Role == auth.RoleAdmin {
		projects, err = h.projectRepo.ListAll(c.Request.Context())
	} else {
		projects, err = h.projectRepo.ListByAssignedDeveloper(c.Request.Context(), p.UserID)
	}
	if err != nil {
		internalError(c, "failed to list projects", err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"count":    len(projects),
	})
}

// AdminSession echoes the admin principal and the request it arrived on.
// GET /api/v1/admin/session
func (h *Handlers) AdminSession(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)
	c.JSON(http.StatusOK, gin.H{
		"user":       principalJSON(p),
		"request_id": middleware.GetRequestID(c),
	})
}

func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler also reports the schema version so a rollout can wait for
// migrations. A dirty schema is not ready.
func readinessHandler(db *sql.DB, schemaVersion SchemaVersionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		version, dirty, err := schemaVersion()
		if err != nil || dirty {
			checks["schema"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "schema not ready",
			})
			return
		}
		checks["schema"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":          true,
			"checks":         checks,
			"schema_version": version,
			"time":           time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}
