package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/munihealth/portal/internal/config"
	"github.com/munihealth/portal/internal/domain/activity"
	"github.com/munihealth/portal/internal/domain/auth"
	"github.com/munihealth/portal/internal/domain/billing"
	"github.com/munihealth/portal/internal/domain/catalog"
	"github.com/munihealth/portal/internal/domain/record"
	"github.com/munihealth/portal/internal/domain/referral"
	"github.com/munihealth/portal/internal/platform/db"
	"github.com/munihealth/portal/internal/platform/mail"
	"github.com/munihealth/portal/internal/platform/middleware"
	"github.com/munihealth/portal/internal/platform/session"
	"github.com/munihealth/portal/internal/platform/token"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "Municipal Health Office Portal API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(issueTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// issueTokenCmd mints a bearer token for the records-export integration, so
// the warehouse credential can be provisioned without touching the database.
func issueTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a bearer token for the records export API",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.ExportTokenSecret == "" {
				return fmt.Errorf("EXPORT_TOKEN_SECRET is not configured")
			}

			tok, err := token.Issue([]byte(cfg.ExportTokenSecret), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().String("subject", "warehouse", "Token subject (the consuming system)")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
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
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID", session.CSRFHeader},
		AllowCredentials: true,
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// Sessions
	sessionStore := session.NewStorePG(pool)
	sessions := session.NewManager(sessionStore,
		time.Duration(cfg.SessionTimeoutMinutes)*time.Minute, cfg.CookieSecure)

	// Outbound mail. Development without an SMTP host logs OTP codes instead.
	var mailer mail.Sender
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	} else {
		mailer = &mail.LogSender{Logger: logger}
	}

	// API groups
	public := e.Group("/api/v1")
	public.Use(middleware.RateLimit(rateLimitCfg))

	emp := e.Group("/api/v1/employee")
	emp.Use(middleware.RateLimit(rateLimitCfg))
	emp.Use(sessions.Require(session.RoleEmployee))

	pat := e.Group("/api/v1/patient")
	pat.Use(middleware.RateLimit(rateLimitCfg))
	pat.Use(sessions.Require(session.RolePatient))

	export := e.Group("/api/v1/export")
	export.Use(middleware.RateLimit(rateLimitCfg))
	export.Use(token.Middleware([]byte(cfg.ExportTokenSecret), token.ScopeExport))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Activity log (every domain records through it)
	activityRepo := activity.NewRepoPG(pool)
	activitySvc := activity.NewService(activityRepo)
	activityHandler := activity.NewHandler(activitySvc)
	activityHandler.RegisterRoutes(emp)

	// Auth
	authRepo := auth.NewRepoPG(pool)
	authSvc := auth.NewService(authRepo, sessions, mailer, auth.Limits{
		MaxAttempts: cfg.LoginMaxAttempts,
		BlockWindow: time.Duration(cfg.LoginBlockMinutes) * time.Minute,
		OTPTTL:      time.Duration(cfg.OTPTTLMinutes) * time.Minute,
	})
	authHandler := auth.NewHandler(authSvc, sessions, activitySvc)
	authHandler.RegisterRoutes(public, emp, pat)

	// Service item catalog
	catalogRepo := catalog.NewRepoPG(pool)
	catalogSvc := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(catalogSvc)
	catalogHandler.RegisterRoutes(emp)

	// Billing
	billingRepo := billing.NewRepoPG(pool)
	billingSvc := billing.NewService(billingRepo, catalogRepo, func(ctx context.Context, fn func(context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	})
	billingHandler := billing.NewHandler(billingSvc, activitySvc)
	billingHandler.RegisterRoutes(emp, pat)

	// Referrals
	referralRepo := referral.NewRepoPG(pool)
	referralSvc := referral.NewService(referralRepo)
	referralHandler := referral.NewHandler(referralSvc, activitySvc)
	referralHandler.RegisterRoutes(emp, pat)

	// Clinical records and aggregation
	recordRepo := record.NewRepoPG(pool)
	recordSvc := record.NewService(recordRepo, referralSvc, billingSvc, authRepo)
	recordHandler := record.NewHandler(recordSvc, activitySvc)
	recordHandler.RegisterRoutes(emp, pat, export)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
