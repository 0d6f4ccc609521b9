// Package api wires together all HTTP routes for the client portal backend.
//
// Every /api/v1 route runs the identity resolver first. Organization-scoped
// routes always chain RequireOrganizationAccess before any handler reads the
// organization, so a current organization carried in a token is never used
// without a live membership check.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/client-portal/portal/internal/auth"
	"github.com/client-portal/portal/internal/config"
	"github.com/client-portal/portal/internal/db"
	"github.com/client-portal/portal/internal/db/repositories"
	"github.com/client-portal/portal/internal/directory"
	"github.com/client-portal/portal/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// BackgroundServices holds resources that must be released during graceful
// shutdown. The caller (cmd/server) calls Shutdown after the HTTP server stops.
type BackgroundServices struct {
	rateLimiter *middleware.RateLimiter
	redisClient *redis.Client
}

// Shutdown stops the in-memory limiter's cleanup goroutine and closes the
// Redis connection pool, whichever is in use.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.rateLimiter != nil {
		bg.rateLimiter.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// newLimiter builds the limiter selected by security.rate_limiting.backend.
// It returns nil when rate limiting is disabled.
func newLimiter(cfg *config.Config, bg *BackgroundServices) middleware.Limiter {
	rl := cfg.Security.RateLimiting
	if !rl.Enabled {
		return nil
	}

	limitCfg := middleware.DefaultRateLimitConfig()
	if rl.RequestsPerMinute > 0 {
		limitCfg.RequestsPerMinute = rl.RequestsPerMinute
	}
	if rl.Burst > 0 {
		limitCfg.BurstSize = rl.Burst
	}

	if rl.Backend == middleware.RateLimitBackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bg.redisClient = client
		slog.Info("rate limiting enabled", "backend", rl.Backend, "addr", cfg.Redis.Addr, "rpm", limitCfg.RequestsPerMinute)
		return middleware.NewRedisRateLimiter(client, limitCfg)
	}

	limiter := middleware.NewRateLimiter(limitCfg)
	bg.rateLimiter = limiter
	slog.Info("rate limiting enabled", "backend", middleware.RateLimitBackendMemory, "rpm", limitCfg.RequestsPerMinute)
	return limiter
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, sqlDB *sql.DB, codec *auth.TokenCodec) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{}

	userRepo := repositories.NewUserRepository(sqlDB)
	orgRepo := repositories.NewOrganizationRepository(sqlDB)
	projectRepo := repositories.NewProjectRepository(db.Wrap(sqlDB))
	dir := directory.NewSQLDirectory(userRepo, orgRepo, projectRepo)
	handlers := NewHandlers(orgRepo, projectRepo)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	router.GET("/health", healthCheckHandler(sqlDB))
	router.GET("/ready", readinessHandler(sqlDB, func() (uint, bool, error) {
		return db.GetMigrationVersion(sqlDB)
	}))
	router.GET("/version", versionHandler())

	apiV1 := router.Group("/api/v1")
	if limiter := newLimiter(cfg, bg); limiter != nil {
		apiV1.Use(middleware.RateLimitMiddleware(limiter))
	}
	apiV1.Use(middleware.AuthMiddleware(codec, dir))
	registerRoutes(apiV1, dir, handlers)

	return router, bg
}

// registerRoutes mounts the gated endpoints on an authenticated group.
func registerRoutes(group *gin.RouterGroup, dir directory.Directory, h *Handlers) {
	group.GET("/me", h.Me)

	orgs := group.Group("/organizations")
	orgs.Use(middleware.RequireOrganizationAccess(dir))
	{
		orgs.GET("/current", h.GetOrganization)
		orgs.GET("/:organizationId", h.GetOrganization)
		orgs.GET("/:organizationId/settings",
			middleware.RequireOrganizationRole(auth.RoleAdmin),
			h.OrganizationSettings)
	}

	group.GET("/projects/:projectId", middleware.RequireProjectAccess(dir), h.GetProject)

	group.GET("/developer/assignments",
		middleware.RequireRole(auth.RoleDeveloper, auth.RoleAdmin),
		h.DeveloperAssignments)

	group.GET("/admin/session", middleware.RequireRole(auth.RoleAdmin), h.AdminSession)
}

// LoggerMiddleware emits one structured record per request. The user id is
// read after the chain runs, so it is present whenever identity resolved.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", middleware.GetRequestID(c)),
			slog.String("user_agent", c.Request.UserAgent()),
		}
		if p, ok := middleware.GetPrincipal(c); ok {
			attrs = append(attrs, slog.String("user_id", p.UserID))
		}
		slog.LogAttrs(c.Request.Context(), slog.LevelInfo, "http request", attrs...)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, PUT, DELETE, OPTIONS"
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
