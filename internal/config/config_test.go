package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN / ServerConfig.GetAddress
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host: "localhost", Port: 5432, User: "castline", Password: "secret",
				Name: "castline", SSLMode: "require",
			},
			want: "host=localhost port=5432 user=castline password=secret dbname=castline sslmode=require",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host: "db.example.com", Port: 5433, User: "admin", Name: "mydb", SSLMode: "disable",
			},
			want: "host=db.example.com port=5433 user=admin password= dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedisEnabled(t *testing.T) {
	if (&RedisConfig{}).Enabled() {
		t.Error("Enabled() = true with no address")
	}
	if !(&RedisConfig{Addr: "localhost:6379"}).Enabled() {
		t.Error("Enabled() = false with an address")
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Host: "localhost", Name: "castline", User: "castline"},
		Auth:     AuthConfig{Issuer: "castline", TokenTTL: time.Hour},
		Logging:  LoggingConfig{Level: "info"},
		Trust: TrustConfig{
			SweepEnabled:   true,
			SweepInterval:  5 * time.Minute,
			SweepBatchSize: 100,
			SystemActorID:  "system:restriction-sweeper",
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid minimal config passes", func(t *testing.T) {
		if err := minimalValidConfig().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"invalid server port 0", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"invalid server port 70000", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"missing database host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"missing database name", func(c *Config) { c.Database.Name = "" }, "database.name"},
		{"missing database user", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "auth.token_ttl"},
		{"tls missing cert_file", func(c *Config) {
			c.Security.TLS = TLSConfig{Enabled: true, KeyFile: "key.pem"}
		}, "cert_file"},
		{"tls missing key_file", func(c *Config) {
			c.Security.TLS = TLSConfig{Enabled: true, CertFile: "cert.pem"}
		}, "key_file"},
		{"rate limit zero rpm", func(c *Config) {
			c.Security.RateLimiting = RateLimitingConfig{Enabled: true}
		}, "requests_per_minute"},
		{"invalid metrics port", func(c *Config) {
			c.Telemetry.Metrics = MetricsConfig{Enabled: true, Port: 0}
		}, "metrics port"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid logging level"},
		{"webhook shipper without url", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "webhook"}}
		}, "webhook.url"},
		{"file shipper without path", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "file", File: &AuditFileConfig{}}}
		}, "file.path"},
		{"s3 shipper without region", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "s3", S3: &AuditS3Config{Bucket: "ledger"}}}
		}, "s3.bucket and region"},
		{"unknown shipper type", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "syslog"}}
		}, "unknown shipper type"},
		{"sweep interval too short", func(c *Config) { c.Trust.SweepInterval = 10 * time.Second }, "trust.sweep_interval"},
		{"sweep batch size zero", func(c *Config) { c.Trust.SweepBatchSize = 0 }, "trust.sweep_batch_size"},
		{"sweep without system actor", func(c *Config) { c.Trust.SystemActorID = "" }, "trust.system_actor_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}

	t.Run("disabled shipper is not validated", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Audit.Shippers = []AuditShipperConfig{{Enabled: false, Type: "nonsense"}}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("disabled sweep ignores interval", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Trust = TrustConfig{SweepEnabled: false}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("all valid log levels pass", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			cfg := minimalValidConfig()
			cfg.Logging.Level = level
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() level %q unexpected error: %v", level, err)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// expandEnv
// ---------------------------------------------------------------------------

func TestExpandEnv(t *testing.T) {
	t.Setenv("CONFIG_TEST_SECRET", "super-secret")
	if got := expandEnv("${CONFIG_TEST_SECRET}"); got != "super-secret" {
		t.Errorf("expandEnv() = %q, want super-secret", got)
	}
	if got := expandEnv("no-vars-here"); got != "no-vars-here" {
		t.Errorf("expandEnv() = %q, want passthrough", got)
	}
	os.Unsetenv("CONFIG_TEST_DEFINITELY_UNSET_12345")
	if got := expandEnv("${CONFIG_TEST_DEFINITELY_UNSET_12345}"); got != "" {
		t.Errorf("expandEnv() = %q, want empty string", got)
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// writeTempConfig creates a temp YAML file and registers a cleanup to remove it.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		return
	}
	if !strings.Contains(err.Error(), "error reading config file") &&
		!strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("Load() unexpected error kind: %v", err)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  host: "testhost"
  port: 9999
database:
  host: "dbhost"
  name: "testdb"
  user: "testuser"
redis:
  addr: "redis:6379"
payment:
  eth_address: "0xabc"
trust:
  sweep_interval: "10m"
audit:
  shippers:
    - enabled: true
      type: file
      file:
        path: /var/log/castline/ledger.jsonl
    - enabled: true
      type: s3
      s3:
        bucket: ledger-archive
        region: eu-central-1
        prefix: prod
logging:
  level: "debug"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" || cfg.Server.Port != 9999 {
		t.Errorf("Server = %s:%d, want testhost:9999", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Database.Host != "dbhost" {
		t.Errorf("Database.Host = %q, want dbhost", cfg.Database.Host)
	}
	if !cfg.Redis.Enabled() {
		t.Error("Redis should be enabled")
	}
	if cfg.Payment.ETHAddress != "0xabc" || cfg.Payment.BTCAddress != "" {
		t.Errorf("Payment = %+v", cfg.Payment)
	}
	if cfg.Trust.SweepInterval != 10*time.Minute {
		t.Errorf("Trust.SweepInterval = %s, want 10m", cfg.Trust.SweepInterval)
	}
	if len(cfg.Audit.Shippers) != 2 {
		t.Fatalf("len(Audit.Shippers) = %d, want 2", len(cfg.Audit.Shippers))
	}
	if s3 := cfg.Audit.Shippers[1].S3; s3 == nil || s3.Bucket != "ledger-archive" || s3.Prefix != "prod" {
		t.Errorf("Audit.Shippers[1].S3 = %+v", s3)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	const content = `
database:
  host: "localhost"
logging:
  level: "info"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("default Database.SSLMode = %q, want require", cfg.Database.SSLMode)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("default Auth.TokenTTL = %s, want 1h", cfg.Auth.TokenTTL)
	}
	if !cfg.Trust.SweepEnabled || cfg.Trust.SweepInterval != 5*time.Minute {
		t.Errorf("default Trust = %+v", cfg.Trust)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CASTLINE_DATABASE_HOST", "env-db")
	t.Setenv("CASTLINE_PAYMENT_BTC_ADDRESS", "bc1qenv")
	t.Setenv("CASTLINE_TRUST_SWEEP_ENABLED", "false")

	cfg, err := Load(writeTempConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Host != "env-db" {
		t.Errorf("Database.Host = %q, want env-db", cfg.Database.Host)
	}
	if cfg.Payment.BTCAddress != "bc1qenv" {
		t.Errorf("Payment.BTCAddress = %q, want bc1qenv", cfg.Payment.BTCAddress)
	}
	if cfg.Trust.SweepEnabled {
		t.Error("Trust.SweepEnabled should be overridden to false")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASS", "mysecret")
	const content = `
database:
  password: "${TEST_DB_PASS}"
logging:
  level: "info"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "mysecret" {
		t.Errorf("Database.Password = %q, want mysecret", cfg.Database.Password)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeTempConfig(t, "server: [unclosed")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}
