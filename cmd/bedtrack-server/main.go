package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bedtrack/bedtrack/internal/config"
	"github.com/bedtrack/bedtrack/internal/domain/alert"
	"github.com/bedtrack/bedtrack/internal/domain/bed"
	"github.com/bedtrack/bedtrack/internal/domain/request"
	"github.com/bedtrack/bedtrack/internal/domain/user"
	"github.com/bedtrack/bedtrack/internal/platform/auth"
	"github.com/bedtrack/bedtrack/internal/platform/db"
	"github.com/bedtrack/bedtrack/internal/platform/httpx"
	"github.com/bedtrack/bedtrack/internal/platform/middleware"
	"github.com/bedtrack/bedtrack/internal/platform/realtime"
	"github.com/bedtrack/bedtrack/internal/platform/tasks"
	"github.com/bedtrack/bedtrack/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bedtrack-server",
		Short: "Hospital bed management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bedtrack API server",
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

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
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

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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
	if os.Getenv("ENV") == "" || os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics, side-effect runner, realtime hub
	metrics := telemetry.NewMetrics()

	runner := tasks.NewRunner(logger, 256, tasks.WithFailureHook(func(task string) {
		metrics.SideEffectFailures.WithLabelValues(task).Inc()
	}))
	runner.Start(ctx, 2)
	defer runner.Stop()

	hub := realtime.NewHub(logger,
		realtime.WithBroadcastHook(func(event string) {
			metrics.EventsBroadcast.WithLabelValues(event).Inc()
		}),
		realtime.WithDropHook(func() {
			metrics.DroppedMessages.Inc()
		}),
		realtime.WithCountHook(func(n int) {
			metrics.ConnectedClients.Set(float64(n))
		}),
	)

	// Repositories
	userRepo := user.NewRepoPG(pool)
	bedRepo := bed.NewRepoPG(pool)
	logRepo := bed.NewLogRepoPG(pool)
	requestRepo := request.NewRepoPG(pool)
	alertRepo := alert.NewRepoPG(pool)

	// Services
	userSvc := user.NewService(userRepo)
	bedSvc := bed.NewService(bedRepo, logRepo, userRepo, hub, runner)
	requestSvc := request.NewService(requestRepo, userRepo, hub, runner)
	alertSvc := alert.NewService(alertRepo)

	alertEngine := alert.NewEngine(alertRepo, bedRepo, hub, cfg.OccupancyThreshold, logger)
	bedSvc.SetAlertNotifier(alertEngine)
	requestSvc.SetAlertNotifier(alertEngine)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpx.ErrorHandler(logger, !cfg.IsProduction())

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger, func(method string, status int) {
		metrics.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health and metrics, outside auth
	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// The websocket endpoint gates itself at handshake time, so it is
	// registered before the REST auth middleware.
	realtime.NewHandler(hub, cfg.JWTSecret).RegisterRoutes(apiV1)

	authed := apiV1.Group("")
	if cfg.IsDev() && cfg.JWTSecret == "" {
		authed.Use(auth.DevAuthMiddleware(cfg.JWTSecret))
	} else {
		authed.Use(auth.JWTMiddleware(cfg.JWTSecret))
	}

	// Domain routes
	user.NewHandler(userSvc).RegisterRoutes(authed)
	bed.NewHandler(bedSvc).RegisterRoutes(authed)
	request.NewHandler(requestSvc).RegisterRoutes(authed)
	alert.NewHandler(alertSvc).RegisterRoutes(authed)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}
