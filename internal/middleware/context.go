package middleware

import (
	"github.com/client-portal/portal/internal/auth"
	"github.com/gin-gonic/gin"
)

// Gate values travel on the request's context.Context. Each gate derives a new
// context and swaps it into c.Request, so a value is visible only to the gates
// and handlers that run after the one that attached it.

func attachPrincipal(c *gin.Context, p auth.Principal) {
	c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
}

func attachOrganizationAccess(c *gin.Context, access auth.OrganizationAccess) {
	c.Request = c.Request.WithContext(auth.WithOrganizationAccess(c.Request.Context(), access))
}

func attachProject(c *gin.Context, project auth.ProjectOwnership) {
	c.Request = c.Request.WithContext(auth.WithProject(c.Request.Context(), project))
}

// GetPrincipal returns the principal attached by AuthMiddleware
func GetPrincipal(c *gin.Context) (auth.Principal, bool) {
	return auth.PrincipalFromContext(c.Request.Context())
}

// GetOrganizationAccess returns the membership attached by RequireOrganizationAccess
func GetOrganizationAccess(c *gin.Context) (auth.OrganizationAccess, bool) {
	return auth.OrganizationAccessFromContext(c.Request.Context())
}

// GetProject returns the ownership record attached by RequireProjectAccess.
// Admin requests pass that gate without a lookup and carry no record.
func GetProject(c *gin.Context) (auth.ProjectOwnership, bool) {
	return auth.ProjectFromContext(c.Request.Context())
}

func principalPtr(c *gin.Context) *auth.Principal {
	p, ok := GetPrincipal(c)
	if !ok {
		return nil
	}
	return &p
}
