package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/middleware"
	"github.com/platinummonkey/cantor/pkg/observability"
	"github.com/platinummonkey/cantor/pkg/storage/sqlstore"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Redis         RedisConfig         `yaml:"redis"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustProxy honors X-Forwarded-For when resolving client addresses
	TrustProxy bool `yaml:"trust_proxy"`

	// Health/metrics server (separate port for k8s health checks). Empty serves
	// them on the API port.
	MetricsPort string `yaml:"metrics_port"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// AuthConfig holds session, password and seed settings
type AuthConfig struct {
	SessionTTL        time.Duration `yaml:"session_ttl"`
	ResetTokenTTL     time.Duration `yaml:"reset_token_ttl"`
	BcryptCost        int           `yaml:"bcrypt_cost"`
	MinPasswordLength int           `yaml:"min_password_length"`

	SeedAdminEmail    string `yaml:"seed_admin_email"`
	SeedAdminPassword string `yaml:"seed_admin_password"`
	SeedAdminName     string `yaml:"seed_admin_name"`
}

// RedisConfig holds the optional Redis connection used by the shared rate
// limiter
type RedisConfig struct {
	URL string `yaml:"url"`
}

// RateLimitConfig limits the unauthenticated credential endpoints
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	Burst             int           `yaml:"burst"`
}

// MaintenanceConfig schedules the expired-row janitor
type MaintenanceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the built-in configuration: sqlite in memory, 30 minute
// sessions, one hour reset tokens, bcrypt cost 12.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			MetricsPort:     "9090",
		},
		Database: DatabaseConfig{
			Driver:          sqlstore.DriverSQLite,
			DSN:             ":memory:",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 30 * time.Second,
			ConnectTimeout:  10 * time.Second,
			AutoMigrate:     true,
		},
		Auth: AuthConfig{
			SessionTTL:        auth.DefaultSessionTTL,
			ResetTokenTTL:     auth.DefaultResetTokenTTL,
			BcryptCost:        auth.DefaultBcryptCost,
			MinPasswordLength: auth.DefaultMinPasswordLength,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 10,
			Window:            time.Minute,
			Burst:             5,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "*/10 * * * *",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "cantor",
			OTelServiceVersion: "dev",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads configuration from the YAML file named by
// CANTOR_CONFIG_FILE (if any) and then environment variables
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("CANTOR_CONFIG_FILE"))
}

// Load applies, in order: defaults, the YAML file at path (skipped when
// empty), environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("CANTOR_HOST", s.Host)
	s.Port = getEnv("CANTOR_PORT", getEnv("PORT", s.Port))
	s.ReadTimeout = getEnvDuration("CANTOR_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("CANTOR_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("CANTOR_IDLE_TIMEOUT", s.IdleTimeout)
	s.RequestTimeout = getEnvDuration("CANTOR_REQUEST_TIMEOUT", s.RequestTimeout)
	s.ShutdownTimeout = getEnvDuration("CANTOR_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("CANTOR_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.CORSOrigins = getEnvList("CANTOR_CORS_ORIGINS", s.CORSOrigins)
	s.TrustProxy = getEnvBool("CANTOR_TRUST_PROXY", s.TrustProxy)
	s.MetricsPort = getEnv("CANTOR_METRICS_PORT", s.MetricsPort)

	d := &c.Database
	d.Driver = getEnv("CANTOR_DB_DRIVER", d.Driver)
	if dsn := getEnv("CANTOR_DATABASE_URL", os.Getenv("DATABASE_URL")); dsn != "" {
		d.DSN = dsn
		// A bare DATABASE_URL of postgres form selects the postgres driver
		if os.Getenv("CANTOR_DB_DRIVER") == "" && isPostgresURL(dsn) {
			d.Driver = sqlstore.DriverPostgres
		}
	}
	d.MaxOpenConns = getEnvInt("CANTOR_DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("CANTOR_DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("CANTOR_DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.ConnMaxIdleTime = getEnvDuration("CANTOR_DB_CONN_MAX_IDLE_TIME", d.ConnMaxIdleTime)
	d.ConnectTimeout = getEnvDuration("CANTOR_DB_CONNECT_TIMEOUT", d.ConnectTimeout)
	d.AutoMigrate = getEnvBool("CANTOR_DB_AUTO_MIGRATE", d.AutoMigrate)

	a := &c.Auth
	a.SessionTTL = getEnvDuration("CANTOR_SESSION_TTL", a.SessionTTL)
	a.ResetTokenTTL = getEnvDuration("CANTOR_RESET_TOKEN_TTL", a.ResetTokenTTL)
	a.BcryptCost = getEnvInt("CANTOR_BCRYPT_COST", a.BcryptCost)
	a.MinPasswordLength = getEnvInt("CANTOR_MIN_PASSWORD_LENGTH", a.MinPasswordLength)
	a.SeedAdminEmail = getEnv("CANTOR_SEED_ADMIN_EMAIL", a.SeedAdminEmail)
	a.SeedAdminPassword = getEnv("CANTOR_SEED_ADMIN_PASSWORD", a.SeedAdminPassword)
	a.SeedAdminName = getEnv("CANTOR_SEED_ADMIN_NAME", a.SeedAdminName)

	c.Redis.URL = getEnv("CANTOR_REDIS_URL", c.Redis.URL)

	r := &c.RateLimit
	r.Enabled = getEnvBool("CANTOR_RATE_LIMIT_ENABLED", r.Enabled)
	r.RequestsPerWindow = getEnvInt("CANTOR_RATE_LIMIT_REQUESTS", r.RequestsPerWindow)
	r.Window = getEnvDuration("CANTOR_RATE_LIMIT_WINDOW", r.Window)
	r.Burst = getEnvInt("CANTOR_RATE_LIMIT_BURST", r.Burst)

	c.Maintenance.Enabled = getEnvBool("CANTOR_JANITOR_ENABLED", c.Maintenance.Enabled)
	c.Maintenance.Schedule = getEnv("CANTOR_JANITOR_SCHEDULE", c.Maintenance.Schedule)

	o := &c.Observability
	o.LogLevel = getEnv("CANTOR_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("CANTOR_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("CANTOR_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("CANTOR_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("CANTOR_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("CANTOR_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("CANTOR_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("CANTOR_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Observability.MetricsEnabled && c.Server.MetricsPort != "" && c.Server.Port == c.Server.MetricsPort {
		return errors.New("server port and metrics port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}

	switch c.Database.Driver {
	case sqlstore.DriverSQLite:
	case sqlstore.DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database DSN is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be %s or %s)",
			c.Database.Driver, sqlstore.DriverPostgres, sqlstore.DriverSQLite)
	}

	if c.Auth.SessionTTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return errors.New("reset token TTL must be positive")
	}
	if err := auth.ValidateBcryptCost(c.Auth.BcryptCost); err != nil {
		return err
	}
	if c.Auth.MinPasswordLength < 1 {
		return errors.New("minimum password length must be at least 1")
	}
	if (c.Auth.SeedAdminEmail == "") != (c.Auth.SeedAdminPassword == "") {
		return errors.New("seed admin email and password must be set together")
	}
	if c.Auth.SeedAdminPassword != "" && len(c.Auth.SeedAdminPassword) < c.Auth.MinPasswordLength {
		return errors.New("seed admin password is shorter than the minimum password length")
	}

	if c.Redis.URL != "" {
		if _, err := redis.ParseURL(c.Redis.URL); err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 {
			return errors.New("rate limit requests per window must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("rate limit window must be positive")
		}
		if c.RateLimit.Burst < 0 {
			return errors.New("rate limit burst must not be negative")
		}
	}

	if c.Maintenance.Enabled {
		if _, err := cron.ParseStandard(c.Maintenance.Schedule); err != nil {
			return fmt.Errorf("invalid janitor schedule %q: %w", c.Maintenance.Schedule, err)
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Addr is the API listen address
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// MetricsAddr is the ops listen address, empty when ops share the API port
func (c *Config) MetricsAddr() string {
	if c.Server.MetricsPort == "" {
		return ""
	}
	return c.Server.Host + ":" + c.Server.MetricsPort
}

// SQLStore returns the storage connection settings
func (c *Config) SQLStore() sqlstore.Config {
	return sqlstore.Config{
		Driver:          c.Database.Driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
		ConnectTimeout:  c.Database.ConnectTimeout,
	}
}

// AuthCore returns the auth service settings
func (c *Config) AuthCore() auth.Config {
	return auth.Config{
		SessionTTL:        c.Auth.SessionTTL,
		ResetTokenTTL:     c.Auth.ResetTokenTTL,
		BcryptCost:        c.Auth.BcryptCost,
		MinPasswordLength: c.Auth.MinPasswordLength,
	}
}

// SeedAccounts returns the accounts to create at startup, empty when no
// seed admin is configured
func (c *Config) SeedAccounts() []auth.SeedAccount {
	if c.Auth.SeedAdminEmail == "" {
		return nil
	}
	return []auth.SeedAccount{{
		Email:    c.Auth.SeedAdminEmail,
		Password: c.Auth.SeedAdminPassword,
		Name:     c.Auth.SeedAdminName,
		Role:     auth.RoleAdmin,
	}}
}

// RateLimiter returns the limiter settings
func (c *Config) RateLimiter() *middleware.RateLimitConfig {
	return &middleware.RateLimitConfig{
		RequestsPerWindow: c.RateLimit.RequestsPerWindow,
		WindowDuration:    c.RateLimit.Window,
		BurstSize:         c.RateLimit.Burst,
	}
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

// OTel returns the OpenTelemetry settings
func (c *Config) OTel() observability.OTelConfig {
	o := c.Observability
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
