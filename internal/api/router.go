// Package api wires together all HTTP routes for the castline trust service.
//
// Route grouping:
//   - /health, /ready, /version and the public /api/v1 listings need no credentials.
//   - /api/v1/accounts requires a bearer session token and only ever acts on the
//     caller's own account.
//   - /api/v1/admin requires a bearer session token as well, but the token only
//     identifies the caller. Admin rights are re-checked against the stored account
//     on every request by the restriction engine, so a demoted or restricted admin
//     loses access immediately even while their token is still valid.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/castline/castline/internal/api/accounts"
	"github.com/castline/castline/internal/api/admin"
	apijobs "github.com/castline/castline/internal/api/jobs"
	"github.com/castline/castline/internal/audit"
	"github.com/castline/castline/internal/auth"
	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db/repositories"
	"github.com/castline/castline/internal/jobs"
	"github.com/castline/castline/internal/ledger"
	"github.com/castline/castline/internal/middleware"
	"github.com/castline/castline/internal/restriction"
	"github.com/castline/castline/internal/safego"
	"github.com/castline/castline/internal/settings"
)

// Version is reported by /version. cmd/server overrides it at startup.
var Version = "dev"

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	sweeper      *jobs.RestrictionExpirySweeper
	cancelJobs   context.CancelFunc
	jobsWG       sync.WaitGroup
	rateLimiters []*middleware.RateLimiter
	publisher    *ledger.Publisher
	redis        *redis.Client
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.sweeper != nil {
		bg.sweeper.Stop()
		bg.cancelJobs()
	}
	// an in-flight sweep may still publish ledger entries
	bg.jobsWG.Wait()
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if err := bg.publisher.Close(); err != nil {
		slog.Warn("failed to close ledger shippers", "error", err)
	}
	if bg.redis != nil {
		if err := bg.redis.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

func (bg *BackgroundServices) startSweeper(sweeper *jobs.RestrictionExpirySweeper) {
	ctx, cancel := context.WithCancel(context.Background())
	bg.sweeper = sweeper
	bg.cancelJobs = cancel
	safego.GoTracked(&bg.jobsWG, "restriction-expiry-sweeper", func() { sweeper.Start(ctx) })
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sqlx.DB) (*gin.Engine, *BackgroundServices, error) {
	bg := &BackgroundServices{}

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	// Ledger shipping to external sinks; the database ledger is written regardless
	shipper, err := audit.NewMultiShipper(context.Background(), cfg.Audit.Shippers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit shippers: %w", err)
	}
	if shipper.Len() > 0 {
		bg.publisher = ledger.NewPublisher(shipper, 10*time.Second)
		slog.Info("ledger shipping enabled", "shippers", shipper.Len())
	}

	engine := restriction.NewEngine(accountRepo, bg.publisher)
	resolver := settings.NewResolver(settingsRepo, cfg.Payment)

	if cfg.Redis.Enabled() {
		bg.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		slog.Info("using redis for rate limiting", "addr", cfg.Redis.Addr)
	}

	// Lift expired restrictions in the background as the SYSTEM actor
	bg.startSweeper(jobs.NewRestrictionExpirySweeper(accountRepo, engine, &cfg.Trust))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, bg.redis))
	router.GET("/version", versionHandler())

	issuer := cfg.Auth.Issuer
	if issuer == "" {
		issuer = auth.DefaultIssuer
	}

	var generalLimit, adminLimit gin.HandlerFunc
	if cfg.Security.RateLimiting.Enabled {
		general := middleware.DefaultRateLimitConfig()
		if rpm := cfg.Security.RateLimiting.RequestsPerMinute; rpm > 0 {
			general.RequestsPerMinute = rpm
		}
		if burst := cfg.Security.RateLimiting.Burst; burst > 0 {
			general.BurstSize = burst
		}
		adminRPM := cfg.Security.RateLimiting.AdminRequestsPerMinute
		if adminRPM <= 0 {
			adminRPM = 60
		}
		generalLimit = middleware.RateLimitMiddleware(bg.newLimiter("general", general))
		adminLimit = middleware.RateLimitMiddleware(bg.newLimiter("admin", middleware.AdminRateLimitConfig(adminRPM)))
	}

	jobHandlers := apijobs.NewHandlers(jobRepo)
	accountHandlers := accounts.NewHandlers(accountRepo, engine, resolver)
	adminAccountHandlers := admin.NewAccountHandlers(engine, accountRepo)
	auditHandlers := admin.NewAuditHandlers(engine, auditRepo)
	settingsHandlers := admin.NewSettingsHandlers(engine, resolver)

	v1 := router.Group("/api/v1")
	if generalLimit != nil {
		v1.Use(generalLimit)
	}
	{
		// Public
		v1.GET("/jobs", jobHandlers.ListOpenJobsHandler())
		v1.GET("/settings/payment", accountHandlers.GetPaymentSettingsHandler())

		// Caller's own account
		me := v1.Group("/accounts", middleware.AuthMiddleware(issuer))
		{
			me.GET("/me", accountHandlers.GetMeHandler())
			me.POST("/me/payment", accountHandlers.SubmitPaymentHandler())
		}

		// Admin; role is re-verified by the engine on every call
		adminGroup := v1.Group("/admin", middleware.AuthMiddleware(issuer))
		if adminLimit != nil {
			adminGroup.Use(adminLimit)
		}
		{
			adminGroup.GET("/accounts/:id", adminAccountHandlers.GetAccountHandler())
			adminGroup.POST("/accounts/:id/confirm-payment", adminAccountHandlers.ConfirmPaymentHandler())
			adminGroup.POST("/accounts/:id/restrict", adminAccountHandlers.RestrictHandler())
			adminGroup.POST("/accounts/:id/lift-restriction", adminAccountHandlers.LiftRestrictionHandler())
			adminGroup.POST("/accounts/:id/role", adminAccountHandlers.ChangeRoleHandler())
			adminGroup.POST("/accounts/:id/trust-score", adminAccountHandlers.OverrideTrustScoreHandler())
			adminGroup.POST("/accounts/:id/verification-tier", adminAccountHandlers.ChangeVerificationTierHandler())

			adminGroup.GET("/audit-logs", auditHandlers.ListAuditLogsHandler())
			adminGroup.GET("/audit-logs/:id", auditHandlers.GetAuditLogHandler())

			adminGroup.PUT("/settings/payment", settingsHandlers.UpdatePaymentSettingsHandler())
		}
	}

	return router, bg, nil
}

// newLimiter returns a Redis-backed limiter when Redis is configured and an
// in-memory one otherwise. In-memory limiters are stopped on Shutdown.
func (bg *BackgroundServices) newLimiter(name string, cfg middleware.RateLimitConfig) middleware.Limiter {
	if bg.redis != nil {
		return middleware.NewRedisRateLimiter(bg.redis, "castline:ratelimit:"+name+":", cfg)
	}
	rl := middleware.NewRateLimiter(cfg)
	bg.rateLimiters = append(bg.rateLimiters, rl)
	return rl
}

// @Summary      Health check
// @Description  Liveness probe. Returns 200 while the database answers pings.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and, when configured, Redis.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks: map, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks: map, error: string"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. A nil client
// skips the Redis check.
func readinessHandler(db *sqlx.DB, client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{}

		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if client != nil {
			if err := client.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "redis not ready",
				})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs one structured record per request. The output format
// follows the global slog handler configured by telemetry.SetupLogger.
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
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		}
		if id := middleware.AccountID(c); id != "" {
			attrs = append(attrs, slog.String("account_id", id))
		}
		slog.LogAttrs(c.Request.Context(), slog.LevelInfo, "http request", attrs...)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, PUT, OPTIONS"
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		methods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
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
