// Package config loads and validates the castline configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the CASTLINE_ prefix (e.g.,
// CASTLINE_DATABASE_HOST overrides database.host in the YAML), so the same
// binary runs with a config.yaml locally and with pure environment variables
// in containers.
//
// The JWT signing secret is not part of this struct; it is read from
// CASTLINE_JWT_SECRET by the auth package.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Trust     TrustConfig     `mapstructure:"trust"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AutoMigrate applies pending schema migrations on startup
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Name               string        `mapstructure:"name"`
	User               string        `mapstructure:"user"`
	Password           string        `mapstructure:"password"`
	SSLMode            string        `mapstructure:"ssl_mode"`
	MaxConnections     int           `mapstructure:"max_connections"`
	MinIdleConnections int           `mapstructure:"min_idle_connections"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds the optional Redis connection used for distributed rate limiting.
// An empty Addr disables Redis and the in-memory limiter is used instead.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// AdminRequestsPerMinute applies to /api/v1/admin routes
	AdminRequestsPerMinute int `mapstructure:"admin_requests_per_minute"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName string          `mapstructure:"service_name"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Profiling   ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ProfilingConfig holds profiling configuration
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuditConfig holds configuration for shipping committed ledger entries to external sinks.
// The database ledger is always written; shippers are copies.
type AuditConfig struct {
	Shippers []AuditShipperConfig `mapstructure:"shippers"`
}

// AuditShipperConfig holds configuration for a single ledger shipper
type AuditShipperConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Type is the shipper type (webhook, file, s3)
	Type    string              `mapstructure:"type"`
	Webhook *AuditWebhookConfig `mapstructure:"webhook"`
	File    *AuditFileConfig    `mapstructure:"file"`
	S3      *AuditS3Config      `mapstructure:"s3"`
}

// AuditWebhookConfig holds webhook shipper configuration
type AuditWebhookConfig struct {
	URL           string            `mapstructure:"url"`
	Headers       map[string]string `mapstructure:"headers"`
	TimeoutSecs   int               `mapstructure:"timeout_secs"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval int               `mapstructure:"flush_interval_secs"`
}

// AuditFileConfig holds file shipper configuration
type AuditFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// AuditS3Config holds S3-compatible archive shipper configuration
type AuditS3Config struct {
	// Endpoint is the S3-compatible endpoint URL (optional, for MinIO and similar)
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	// Prefix is prepended to every object key
	Prefix string `mapstructure:"prefix"`
	// Static credentials; when empty the AWS default credential chain is used
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// BatchSize entries are written per object; FlushInterval bounds how long an entry waits
	BatchSize     int `mapstructure:"batch_size"`
	FlushInterval int `mapstructure:"flush_interval_secs"`
}

// PaymentConfig holds the default payment addresses used until an admin saves settings.
type PaymentConfig struct {
	ETHAddress string `mapstructure:"eth_address"`
	BTCAddress string `mapstructure:"btc_address"`
}

// TrustConfig holds trust engine background work configuration
type TrustConfig struct {
	// SweepEnabled turns on the job that lifts expired restrictions
	SweepEnabled bool `mapstructure:"sweep_enabled"`
	// SweepInterval is how often expired restrictions are lifted
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// SweepBatchSize caps how many accounts one sweep run lifts
	SweepBatchSize int `mapstructure:"sweep_batch_size"`
	// SystemActorID is recorded as actor_id on ledger entries written by background jobs
	SystemActorID string `mapstructure:"system_actor_id"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.shutdown_timeout",
		"server.auto_migrate",

		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",
		"database.conn_max_lifetime",

		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",

		// Auth
		"auth.issuer",
		"auth.token_ttl",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.admin_requests_per_minute",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.port",
		"telemetry.profiling.enabled",
		"telemetry.profiling.port",

		// Payment
		"payment.eth_address",
		"payment.btc_address",

		// Trust
		"trust.sweep_enabled",
		"trust.sweep_interval",
		"trust.sweep_batch_size",
		"trust.system_actor_id",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config.yaml in common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/castline")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("CASTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	for i := range cfg.Audit.Shippers {
		if s3 := cfg.Audit.Shippers[i].S3; s3 != nil {
			s3.AccessKeyID = expandEnv(s3.AccessKeyID)
			s3.SecretAccessKey = expandEnv(s3.SecretAccessKey)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.auto_migrate", true)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "castline")
	v.SetDefault("database.user", "castline")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.issuer", "castline")
	v.SetDefault("auth.token_ttl", "1h")

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 60)
	v.SetDefault("security.rate_limiting.burst", 10)
	v.SetDefault("security.rate_limiting.admin_requests_per_minute", 120)
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "castline")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)

	// Trust defaults
	v.SetDefault("trust.sweep_enabled", true)
	v.SetDefault("trust.sweep_interval", "5m")
	v.SetDefault("trust.sweep_batch_size", 100)
	v.SetDefault("trust.system_actor_id", "system:restriction-sweeper")
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	if c.Security.RateLimiting.Enabled && c.Security.RateLimiting.RequestsPerMinute < 1 {
		return fmt.Errorf("security.rate_limiting.requests_per_minute must be at least 1 when rate limiting is enabled")
	}

	if c.Telemetry.Metrics.Enabled && (c.Telemetry.Metrics.Port < 1 || c.Telemetry.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Telemetry.Metrics.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	for i, s := range c.Audit.Shippers {
		if !s.Enabled {
			continue
		}
		switch s.Type {
		case "webhook":
			if s.Webhook == nil || s.Webhook.URL == "" {
				return fmt.Errorf("audit.shippers[%d].webhook.url is required for webhook shipper", i)
			}
		case "file":
			if s.File == nil || s.File.Path == "" {
				return fmt.Errorf("audit.shippers[%d].file.path is required for file shipper", i)
			}
		case "s3":
			if s.S3 == nil || s.S3.Bucket == "" || s.S3.Region == "" {
				return fmt.Errorf("audit.shippers[%d].s3.bucket and region are required for s3 shipper", i)
			}
		default:
			return fmt.Errorf("audit.shippers[%d]: unknown shipper type %q (must be webhook, file, or s3)", i, s.Type)
		}
	}

	if c.Trust.SweepEnabled {
		if c.Trust.SweepInterval < time.Minute {
			return fmt.Errorf("trust.sweep_interval must be at least 1m when the sweep is enabled")
		}
		if c.Trust.SweepBatchSize < 1 {
			return fmt.Errorf("trust.sweep_batch_size must be at least 1")
		}
		if c.Trust.SystemActorID == "" {
			return fmt.Errorf("trust.system_actor_id is required when the sweep is enabled")
		}
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
