package middleware

import (
	"log/slog"
	"net/http"

	"github.com/client-portal/portal/internal/auth"
	"github.com/client-portal/portal/internal/telemetry"
	"github.com/gin-gonic/gin"
)

// Gate names used in logs and the auth_decisions_total metric.
const (
	GateIdentity         = "identity"
	GateRole             = "role"
	GateOrganization     = "organization"
	GateOrganizationRole = "organization_role"
	GateProject          = "project"
)

const msgInternalError = "internal server error"

// ErrorResponse is the body of every gate failure.
func ErrorResponse(message string) gin.H {
	return gin.H{"status": "error", "message": message}
}

func allow(gate string) {
	telemetry.AuthDecisionsTotal.WithLabelValues(gate, telemetry.OutcomeAllowed).Inc()
}

// abortWithError ends the request for a failed gate. Classified errors return
// their own status and message; anything else is an infrastructure failure and
// returns a generic 500 with the detail kept in the log.
func abortWithError(c *gin.Context, gate string, err error) {
	attrs := []any{
		"gate", gate,
		"request_id", c.GetString(RequestIDKey),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	if p, ok := GetPrincipal(c); ok {
		attrs = append(attrs, "user_id", p.UserID)
	}

	authErr, ok := auth.AsError(err)
	if !ok {
		telemetry.AuthDecisionsTotal.WithLabelValues(gate, telemetry.OutcomeError).Inc()
		slog.Error("authorization gate failed", append(attrs, "error", err)...)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse(msgInternalError))
		return
	}

	telemetry.AuthDecisionsTotal.WithLabelValues(gate, telemetry.OutcomeDenied).Inc()
	attrs = append(attrs, "kind", authErr.Kind.String(), "reason", authErr.Error())
	if authErr.Kind == auth.KindUnauthenticated {
		slog.Warn("request denied", attrs...)
	} else {
		slog.Info("request denied", attrs...)
	}
	c.AbortWithStatusJSON(authErr.Kind.HTTPStatus(), ErrorResponse(authErr.Message))
}
