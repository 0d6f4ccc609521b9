// Package main is the entry point for the client portal server binary.
// It dispatches four subcommands (serve, migrate, issue-token and version) via
// a switch on os.Args. The serve command runs migrations on startup.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- served only on the dedicated profiling port, never on the API listener
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/client-portal/portal/internal/api"
	"github.com/client-portal/portal/internal/auth"
	"github.com/client-portal/portal/internal/config"
	"github.com/client-portal/portal/internal/db"
	"github.com/client-portal/portal/internal/db/repositories"
	"github.com/client-portal/portal/internal/safego"
	"github.com/client-portal/portal/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// version is overridden with -ldflags "-X main.version=..."
var version = "0.1.0"

const usage = "Available commands: serve, migrate <up|down|force VERSION>, issue-token <email>, version"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("Client Portal v%s\n", version)
		return nil
	}

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	output := cfg.Logging.Output
	if command == "issue-token" {
		// stdout carries only the token
		output = "stderr"
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level, output)

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down|force VERSION>", os.Args[0])
		}
		if os.Args[2] == "force" {
			if len(os.Args) < 4 {
				return fmt.Errorf("usage: %s migrate force VERSION", os.Args[0])
			}
			v, err := strconv.Atoi(os.Args[3])
			if err != nil {
				return fmt.Errorf("invalid migration version %q: %w", os.Args[3], err)
			}
			return forceMigration(cfg, v)
		}
		return runMigrations(cfg, os.Args[2])
	case "issue-token":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s issue-token <email>", os.Args[0])
		}
		return issueToken(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\n%s", command, usage)
	}
}

func connect(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"name", cfg.Database.Name,
		"user", cfg.Database.User,
		"ssl_mode", cfg.Database.SSLMode,
	)
	return database, nil
}

func serve(cfg *config.Config) error {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// A missing signing secret aborts startup before anything listens.
	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	telemetry.StartDBStatsCollector(ctx, database, 15*time.Second)

	slog.Info("running database migrations")
	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", v, "dirty", dirty)
	}

	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go("metrics-server", func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	if cfg.Telemetry.Profiling.Enabled {
		pprofAddr := fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port)
		safego.Go("pprof-server", func() {
			slog.Info("starting pprof server", "addr", pprofAddr)
			srv := &http.Server{ //nolint:gosec // #nosec G112 -- internal-only pprof port
				Addr:         pprofAddr,
				Handler:      http.DefaultServeMux,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("pprof server error", "error", err)
			}
		})
	}

	api.Version = version
	router, bgServices := api.NewRouter(cfg, database, codec)

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	safego.Go("http-server", func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"tls", cfg.Security.TLS.Enabled,
			"rate_limiting", cfg.Security.RateLimiting.Enabled,
			"rate_limit_backend", cfg.Security.RateLimiting.Backend,
		)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		bgServices.Shutdown()
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	slog.Info("migration completed", "version", v, "dirty", dirty)
	return nil
}

// forceMigration clears a dirty schema state left by an interrupted migration.
func forceMigration(cfg *config.Config, v int) error {
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	before, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return err
	}
	slog.Info("current migration state", "version", before, "dirty", dirty)

	if err := db.ForceMigrationVersion(database, v); err != nil {
		return err
	}
	slog.Info("migration version forced", "version", v)
	return nil
}

// issueToken signs a session token for an existing active account. The claims
// come from the stored account and preference; nothing is taken from the caller
// except the email used to find the account.
func issueToken(cfg *config.Config, email string) error {
	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := repositories.NewUserRepository(database)
	user, err := users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no account with email %q", email)
	}
	if !user.IsActive {
		return fmt.Errorf("account %q is inactive", email)
	}

	role, err := auth.ParseRole(user.Role)
	if err != nil {
		return fmt.Errorf("account %q: %w", email, err)
	}

	claims := auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   role,
		Name:   user.Name,
	}
	pref, err := users.GetPreference(ctx, user.ID)
	if err != nil {
		return err
	}
	if pref != nil && pref.CurrentOrganizationID != nil {
		claims.CurrentOrganizationID = *pref.CurrentOrganizationID
	}

	token, err := codec.Issue(claims)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintf(os.Stderr, "token for %s (%s) expires in %s\n", user.Email, user.ID, auth.TokenTTL)
	fmt.Println(token)
	return nil
}
