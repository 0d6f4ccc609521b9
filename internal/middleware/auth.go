// Package middleware provides the portal's Gin middleware: the identity
// resolver and authorization gates plus request ID, metrics, rate limiting and
// security headers.
//
// Ordering is enforced in router.go:
//
//	RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → gates → Handler
//
// Auth attaches the principal; RequireRole, RequireOrganizationAccess and
// RequireProjectAccess read it. RequireOrganizationRole must follow
// RequireOrganizationAccess on the same route.
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/client-portal/portal/internal/auth"
	"github.com/client-portal/portal/internal/directory"
	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// AuthMiddleware resolves the bearer token into a principal and attaches it to
// the request context.
func AuthMiddleware(codec *auth.TokenCodec, dir directory.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := ResolveIdentity(c.Request.Context(), codec, dir, c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, GateIdentity, err)
			return
		}

		attachPrincipal(c, p)
		allow(GateIdentity)
		c.Next()
	}
}

// ResolveIdentity turns an Authorization header into a principal built from the
// live account record. The token's role, name and email are not trusted; only
// its user id and current organization are used.
func ResolveIdentity(ctx context.Context, codec *auth.TokenCodec, dir directory.Directory, header string) (auth.Principal, error) {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return auth.Principal{}, auth.Unauthenticated(auth.MsgTokenRequired, nil)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		return auth.Principal{}, auth.Unauthenticated(auth.MsgInvalidToken, err)
	}

	account, err := dir.GetAccount(ctx, claims.UserID)
	if err != nil {
		return auth.Principal{}, err
	}
	if account == nil {
		return auth.Principal{}, auth.Unauthenticated(auth.MsgInvalidToken, errors.New("account not found"))
	}
	if !account.IsActive {
		return auth.Principal{}, auth.Unauthenticated(auth.MsgInvalidToken, errors.New("account inactive"))
	}

	currentOrg := claims.CurrentOrganizationID
	if currentOrg == "" {
		currentOrg, err = dir.GetOrganizationPreference(ctx, account.ID)
		if err != nil {
			return auth.Principal{}, err
		}
	}

	return auth.Principal{
		UserID:                account.ID,
		Email:                 account.Email,
		Name:                  account.Name,
		Role:                  account.Role,
		CurrentOrganizationID: currentOrg,
	}, nil
}
