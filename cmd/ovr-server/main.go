package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/r3hc/ovr/internal/config"
	"github.com/r3hc/ovr/internal/domain/audit"
	"github.com/r3hc/ovr/internal/domain/comment"
	"github.com/r3hc/ovr/internal/domain/identity"
	"github.com/r3hc/ovr/internal/domain/incident"
	"github.com/r3hc/ovr/internal/domain/reference"
	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/internal/platform/db"
	"github.com/r3hc/ovr/internal/platform/logging"
	"github.com/r3hc/ovr/internal/platform/metrics"
	"github.com/r3hc/ovr/internal/platform/middleware"
	"github.com/r3hc/ovr/internal/platform/reporting"
	"github.com/r3hc/ovr/internal/platform/telemetry"
	"github.com/r3hc/ovr/internal/platform/validation"
	"github.com/r3hc/ovr/migrations"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ovr-server",
		Short: "Occurrence variance reporting server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ovr-server", version)
		},
	}
}

// openPool loads the configuration and connects to the database.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrations.FS)
			var count int
			if to > 0 {
				count, err = migrator.UpTo(ctx, to)
			} else {
				count, err = migrator.Up(ctx)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this migration version (0 applies all)")
	cmd.AddCommand(upCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed facilities and categories, optionally creating an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("admin-email")
			password, _ := cmd.Flags().GetString("admin-password")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			app := buildApp(cfg, pool, nil, logger, nil)

			res, err := app.reference.Seed(ctx)
			if err != nil {
				return fmt.Errorf("seed reference data: %w", err)
			}
			fmt.Printf("Seeded %d facilities and %d categories.\n", res.Facilities, res.Categories)

			if email == "" {
				return nil
			}
			created, err := app.identity.EnsureAdmin(ctx, email, password, nil)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			if created {
				fmt.Printf("Created admin account %s.\n", email)
			} else {
				fmt.Printf("Account %s already exists, left unchanged.\n", email)
			}
			return nil
		},
	}
	cmd.Flags().String("admin-email", "", "Email of the admin account to create")
	cmd.Flags().String("admin-password", "", "Password of the admin account to create")
	return cmd
}

// app holds the wired domain services.
type app struct {
	audit     *audit.Service
	reference *reference.Service
	identity  *identity.Service
	comment   *comment.Service
	incident  *incident.Service
	reporting *reporting.Handler
}

// buildApp wires repositories and services. tokens is nil when local
// password login is disabled.
func buildApp(cfg *config.Config, pool *pgxpool.Pool, tokens *auth.TokenIssuer, logger zerolog.Logger, m *metrics.Metrics) *app {
	tx := db.NewTransactor(pool)

	auditSvc := audit.NewService(audit.NewRepo(pool), logger.With().Str("component", "audit").Logger(), m)
	refSvc := reference.NewService(reference.NewFacilityRepo(pool), reference.NewCategoryRepo(pool), tx, auditSvc,
		logger.With().Str("component", "reference").Logger())

	identitySvc := identity.NewService(identity.NewUserRepo(pool), identity.NewRegistrationRepo(pool), tx, auditSvc,
		auth.NewPasswordHasher(cfg.BcryptCost), tokens, logger.With().Str("component", "identity").Logger())
	identitySvc.SetMetrics(m)

	commentSvc := comment.NewService(comment.NewRepo(pool), tx, auditSvc)

	incidentSvc := incident.NewService(incident.NewRepo(pool), incident.NewSequenceRepo(pool), tx, refSvc,
		commentSvc, auditSvc, logger.With().Str("component", "incident").Logger())
	incidentSvc.SetMetrics(m)
	commentSvc.SetIncidentAccess(incidentSvc)

	reportHandler := reporting.NewHandler(pool, reporting.WithExportRecorder(
		func(ctx context.Context, p *auth.Principal, rows int) error {
			return auditSvc.Record(ctx, audit.Entry{
				UserID:       principalID(p),
				Action:       audit.ActionExportReport,
				ResourceType: audit.ResourceReport,
				ResourceID:   "incidents.xlsx",
				Details:      map[string]any{"rows": rows},
			})
		}))

	return &app{
		audit:     auditSvc,
		reference: refSvc,
		identity:  identitySvc,
		comment:   commentSvc,
		incident:  incidentSvc,
		reporting: reportHandler,
	}
}

func principalID(p *auth.Principal) *uuid.UUID {
	if p == nil {
		return nil
	}
	id := p.UserID
	return &id
}

// devSecret returns a random signing key for development runs without
// JWT_SECRET. Tokens do not survive a restart.
func devSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// newRouter builds the echo instance with the global middleware chain and
// returns it together with the authenticated /api group.
func newRouter(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics, authn *auth.Authenticator) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)
	e.Validator = validation.EchoValidator{}

	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(telemetry.Middleware("ovr-server"))
	e.Use(m.Middleware())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.RateLimit(rl))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(middleware.RequestMetadata())
	e.Use(authn.Middleware(auth.AuthSkipper))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	return e, e.Group("/api")
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Console:    cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer logCloser.Close()

	if cfg.AcceptsLocalTokens() && cfg.JWTSecret == "" && cfg.IsDev() {
		secret, err := devSecret()
		if err != nil {
			return fmt.Errorf("generate development secret: %w", err)
		}
		cfg.JWTSecret = secret
		logger.Warn().Msg("JWT_SECRET not set, using a random development secret")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "ovr-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if cfg.MigrationsOnStart {
		count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info().Int("applied", count).Msg("migrations up to date")
	}

	m := metrics.New(cfg.MetricsNamespace)

	var revocations auth.RevocationStore
	if cfg.RedisURL != "" {
		revocations, err = auth.NewRedisRevocationStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info().Msg("using redis token revocation store")
	} else {
		revocations = auth.NewMemoryRevocationStore()
	}
	defer revocations.Close()

	var tokens *auth.TokenIssuer
	if cfg.AcceptsLocalTokens() {
		tokens = auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL)
	}

	a := buildApp(cfg, pool, tokens, logger, m)

	if cfg.SeedOnStart {
		res, err := a.reference.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed reference data: %w", err)
		}
		if res.Facilities > 0 || res.Categories > 0 {
			logger.Info().Int("facilities", res.Facilities).Int("categories", res.Categories).Msg("seeded reference data")
		}
	}

	authOpts := []auth.AuthenticatorOption{auth.WithRevocations(revocations)}
	if tokens != nil {
		authOpts = append(authOpts, auth.WithLocalTokens(tokens))
	}
	if cfg.AcceptsExternalTokens() {
		authOpts = append(authOpts, auth.WithExternalTokens(
			auth.NewExternalVerifier(cfg.AuthIssuer, cfg.AuthJWKSURL, cfg.AuthAudience)))
	}
	authn := auth.NewAuthenticator(a.identity, logger.With().Str("component", "auth").Logger(), authOpts...)
	a.identity.SetRevoker(authn)

	e, api := newRouter(cfg, logger, m, authn)
	e.GET("/health/db", db.HealthHandler(pool))

	audit.NewHandler(a.audit).RegisterRoutes(api)
	reference.NewHandler(a.reference).RegisterRoutes(api)
	identity.NewHandler(a.identity).RegisterRoutes(api)
	comment.NewHandler(a.comment).RegisterRoutes(api)
	incident.NewHandler(a.incident).RegisterRoutes(api)
	a.reporting.RegisterRoutes(api)

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go reportPoolStats(statsCtx, pool, m, 15*time.Second)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, m *metrics.Metrics, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := pool.Stat()
			m.SetPoolStats(s.AcquiredConns(), s.IdleConns(), s.TotalConns())
		}
	}
}
