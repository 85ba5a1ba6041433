package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mindtwin/mindtwin/internal/config"
	"github.com/mindtwin/mindtwin/internal/domain/twin"
	"github.com/mindtwin/mindtwin/internal/phi"
	"github.com/mindtwin/mindtwin/internal/platform/auth"
	"github.com/mindtwin/mindtwin/internal/platform/db"
	"github.com/mindtwin/mindtwin/internal/platform/hipaa"
	"github.com/mindtwin/mindtwin/internal/platform/logging"
	"github.com/mindtwin/mindtwin/internal/platform/metrics"
	"github.com/mindtwin/mindtwin/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "twin-server",
		Short: "MindTwin psychiatric digital-twin API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(patternsCmd())

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
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
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
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
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

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect PHI detection patterns",
	}

	lintCmd := &cobra.Command{
		Use:   "lint <file>",
		Short: "Validate a pattern file without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := phi.LoadPatternFile(args[0])
			if err != nil {
				return err
			}
			errs := pf.Lint()
			if len(errs) == 0 {
				fmt.Printf("%s: %d pattern(s), no problems found\n", args[0], len(pf.Patterns))
				return nil
			}
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], e)
			}
			return fmt.Errorf("%d problem(s) found", len(errs))
		},
	}
	cmd.AddCommand(lintCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List active detection patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			scfg, err := cfg.SanitizerConfig()
			if err != nil {
				return err
			}

			repo := phi.NewRepository()
			if file != "" {
				pf, err := phi.LoadPatternFile(file)
				if err != nil {
					return err
				}
				pf.Register(repo, scfg, zerolog.Nop())
			}

			fmt.Printf("%-28s %-10s %-10s %s\n", "NAME", "KIND", "STRATEGY", "PRIORITY")
			for _, p := range repo.Patterns() {
				fmt.Printf("%-28s %-10s %-10s %d\n", p.Name(), p.Kind(), p.Strategy(), p.Priority())
			}
			return nil
		},
	}
	listCmd.Flags().String("file", "", "Additional pattern file to merge")
	cmd.AddCommand(listCmd)

	return cmd
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// PHI sanitizer. Built before the logger so every log line passes
	// through it.
	scfg, err := cfg.SanitizerConfig()
	if err != nil {
		return err
	}
	patternRepo := phi.NewRepository()
	sanitizer, err := phi.New(scfg, patternRepo)
	if err != nil {
		return err
	}

	// Logger, PHI-sanitized at the sink.
	var logSink io.Writer = os.Stdout
	if cfg.IsDev() {
		logSink = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	logger := logging.New(logSink, sanitizer)

	// Extra patterns from a YAML file, merged on top of the built-ins.
	if cfg.PHIPatternFile != "" {
		pf, err := phi.LoadPatternFile(cfg.PHIPatternFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.PHIPatternFile).Msg("failed to load pattern file")
		}
		n := pf.Register(patternRepo, scfg, logger)
		logger.Info().Int("patterns", n).Str("file", cfg.PHIPatternFile).Msg("loaded pattern file")
	}

	// Metrics
	m := metrics.New("mindtwin")
	sanitizer.SetObserver(m)

	// Database. Optional: without DATABASE_URL the server runs on
	// in-memory repositories and log-only auditing.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
	} else {
		if cfg.IsProduction() {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		logger.Warn().Msg("no DATABASE_URL configured; using in-memory storage")
	}

	// Security audit sink.
	var auditor middleware.SecurityAuditor
	if pool != nil {
		auditor = hipaa.NewAuditLogger(pool)
	} else {
		auditor = hipaa.NewLogRecorder(logger)
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.AccessReasonHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}
	e.Use(auth.AccessReason())

	// PHI interceptor
	if cfg.PHIEnabled {
		e.Use(middleware.PHI(middleware.PHIConfig{
			Sanitizer:           sanitizer,
			ExemptPaths:         cfg.ExemptPaths(),
			BlockRequests:       cfg.PHIBlockRequests,
			MaskResponses:       cfg.PHIMaskResponses,
			RequireAccessReason: cfg.PHIRequireAccessReason,
			Auditor:             auditor,
			Metrics:             m,
		}, logger))
	} else {
		logger.Warn().Msg("PHI protection is disabled")
	}

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Domain routes
	apiV1 := e.Group("/api/v1")

	patients, snapshots := twin.NewPatientRepoMem(), twin.NewSnapshotRepoMem()
	if pool != nil {
		patients, snapshots = twin.NewPatientRepoPG(pool), twin.NewSnapshotRepoPG(pool)
	}
	twinSvc := twin.NewService(patients, snapshots)
	twinHandler := twin.NewHandler(twinSvc)
	twinHandler.RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
