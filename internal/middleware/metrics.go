package middleware

import (
	"strconv"
	"time"

	"github.com/client-portal/portal/internal/telemetry"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for every request. The path label is the route
// template from c.FullPath(); unmatched requests use "<no-route>".
//
// Register it globally, after RequestIDMiddleware and ahead of every group, so
// statuses written by aborting gates are captured:
//
//	router.Use(middleware.RequestIDMiddleware())
//	router.Use(middleware.MetricsMiddleware())
//
//	apiV1 := router.Group("/api/v1")
//	apiV1.Use(middleware.AuthMiddleware(codec, dir))
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
