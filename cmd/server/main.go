// @title           Castline Trust API
// @version         1.0.0
// @description     Account restriction, trust scoring, and audit ledger service for the castline casting marketplace
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                         Authorization
// @description                  "Session token: 'Bearer {jwt}'"
//
// @tag.name         System
// @tag.description  Health, readiness, and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics and profiling are served on a dedicated port (default: 9090) separate from the API listener. Configure it with CASTLINE_TELEMETRY_METRICS_PORT. pprof (CASTLINE_TELEMETRY_PROFILING_ENABLED=true) listens on CASTLINE_TELEMETRY_PROFILING_PORT (default: 6060).

// Package main is the entry point for the castline server binary.
// It dispatches three subcommands, serve, migrate, and version, via a simple
// switch on os.Args so the binary's full CLI surface is readable in one place.
// The serve command runs auto-migration on startup unless disabled.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- served only on the internal profiling port, never on the API listener
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/castline/castline/internal/api"
	"github.com/castline/castline/internal/auth"
	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db"
	"github.com/castline/castline/internal/telemetry"
)

const (
	version = "0.1.0"
)

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
		fmt.Printf("castline v%s\n", version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Initialise structured logger as early as possible so all subsequent log output
	// uses the configured format (json / text) and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Fails in production when CASTLINE_JWT_SECRET is not set
	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections,
		cfg.Database.MinIdleConnections, cfg.Database.ConnMaxLifetime)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	telemetry.StartDBStatsCollector(ctx, database, 30*time.Second)

	if cfg.Server.AutoMigrate {
		if err := db.RunMigrations(database.DB, "up"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if v, dirty, err := db.GetMigrationVersion(database.DB); err != nil {
			slog.Warn("failed to get migration version", "error", err)
		} else {
			slog.Info("database schema ready", "version", v, "dirty", dirty)
		}
	}

	// Metrics live on their own port so the scrape path stays off the public ingress.
	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		startSideServer("metrics", fmt.Sprintf(":%d", cfg.Telemetry.Metrics.Port), mux)
	}
	if cfg.Telemetry.Profiling.Enabled {
		// net/http/pprof registers on http.DefaultServeMux at init time
		startSideServer("pprof", fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port), http.DefaultServeMux)
	}

	api.Version = version
	router, bgServices, err := api.NewRouter(cfg, database)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", server.Addr, "version", version, "tls", cfg.Security.TLS.Enabled)
		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		bgServices.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop background jobs, rate limiters and ledger shippers after requests drained
	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

func startSideServer(name, addr string, handler http.Handler) {
	go func() {
		slog.Info("starting "+name+" server", "addr", addr)
		srv := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(name+" server error", "error", err)
		}
	}()
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections,
		cfg.Database.MinIdleConnections, cfg.Database.ConnMaxLifetime)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Printf("Running migrations: %s", direction)

	if err := db.RunMigrations(database.DB, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", v, dirty)
	return nil
}
