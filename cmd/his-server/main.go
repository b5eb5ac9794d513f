package main

import (
	"context"
	"fmt"
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

	"github.com/his/his-backend/internal/config"
	"github.com/his/his-backend/internal/domain/patient"
	"github.com/his/his-backend/internal/platform/cache"
	"github.com/his/his-backend/internal/platform/db"
	"github.com/his/his-backend/internal/platform/middleware"
)

const cachePrefix = "his:"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "his-server",
		Short: "Patient records API server",
	}
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(schemaCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the patient records API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the patient tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Create the patient tables and indexes if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.ApplySchema(ctx, pool); err != nil {
				return fmt.Errorf("schema apply failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied successfully.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which schema objects exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			objects, err := db.SchemaStatus(ctx, pool)
			if err != nil {
				return fmt.Errorf("failed to get schema status: %w", err)
			}
			printSchemaStatus(cmd, objects)
			return nil
		},
	})

	return cmd
}

func printSchemaStatus(cmd *cobra.Command, objects []db.SchemaObject) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-32s %-8s %s\n", "NAME", "KIND", "STATUS")
	for _, o := range objects {
		status := "missing"
		if o.Present {
			status = "present"
		}
		fmt.Fprintf(out, "%-32s %-8s %s\n", o.Name, o.Kind, status)
	}
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newRepository picks the store backend named by DB_DRIVER. Both share the pool.
func newRepository(cfg *config.Config, pool *pgxpool.Pool) (patient.Repository, error) {
	if cfg.DBDriver == config.DriverGorm {
		gdb, err := db.NewGorm(pool)
		if err != nil {
			return nil, err
		}
		return patient.NewRepoGorm(gdb), nil
	}
	return patient.NewRepoPG(pool), nil
}

type routerDeps struct {
	cfg      *config.Config
	logger   zerolog.Logger
	patients *patient.Handler
	dbHealth echo.HandlerFunc
	// Applied to the patient routes only.
	routeMW []echo.MiddlewareFunc
}

func newRouter(d routerDeps) *echo.Echo {
	cfg := d.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.HTTPErrorHandler(d.logger)

	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	if cfg.RateLimitRPS > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimitRPS
		rl.BurstSize = cfg.RateLimitBurst
		e.Use(middleware.RateLimit(rl))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.dbHealth != nil {
		e.GET("/health/db", d.dbHealth)
	}

	d.patients.RegisterRoutes(e.Group(cfg.RoutePrefix, d.routeMW...))
	return e
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

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
	logger.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	if cfg.SchemaBootstrap {
		if err := db.ApplySchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		logger.Info().Msg("schema ready")
	}

	repo, err := newRepository(cfg, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	opts := []patient.Option{patient.WithLogger(logger)}
	if cfg.CacheEnabled() {
		lc, err := cache.NewFromURL(ctx, cfg.RedisURL, cachePrefix, cfg.CacheTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer lc.Close()
		opts = append(opts, patient.WithCache(lc))
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("patient list cache enabled")
	}

	deps := routerDeps{
		cfg:      cfg,
		logger:   logger,
		patients: patient.NewHandler(patient.NewService(repo, opts...), logger),
		dbHealth: db.HealthHandler(pool),
	}
	// The gorm backend manages its own connections through database/sql.
	if cfg.DBDriver == config.DriverPgx {
		deps.routeMW = append(deps.routeMW, db.ConnMiddleware(pool))
	}
	e := newRouter(deps)

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
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
