package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the auth service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Token    TokenConfig    `mapstructure:"token"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Reaper   ReaperConfig   `mapstructure:"reaper"`
	Guard    GuardConfig    `mapstructure:"guard"`
}

// ServerConfig holds gRPC server configuration.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	MetricsPort       int           `mapstructure:"metrics_port"`
	EnableReflection  bool          `mapstructure:"enable_reflection"`
	EnableHealthCheck bool          `mapstructure:"enable_health_check"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the gRPC server address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Address returns the Redis address.
func (c RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// TokenConfig holds JWT token configuration.
type TokenConfig struct {
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	AccessLifetime  time.Duration `mapstructure:"access_lifetime"`
	RefreshLifetime time.Duration `mapstructure:"refresh_lifetime"`
	SigningKey      string        `mapstructure:"signing_key"`

	// ReuseRevocationScope selects what gets revoked when a rotated
	// refresh token is replayed: "chain" or "single".
	ReuseRevocationScope string `mapstructure:"reuse_revocation_scope"`
}

// CacheConfig holds cache TTL configuration.
type CacheConfig struct {
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	ProfileTTL    time.Duration `mapstructure:"profile_ttl"`
	SecurityTTL   time.Duration `mapstructure:"security_ttl"`
	PermissionTTL time.Duration `mapstructure:"permission_ttl"`
}

// ReaperConfig holds configuration for the credential reaper.
type ReaperConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
}

// GuardConfig holds configuration for the request-time guard.
type GuardConfig struct {
	ExpiryWarningWindow time.Duration `mapstructure:"expiry_warning_window"`
}

// Load reads configuration from an optional yaml file, applying
// MALLORN_-prefixed environment overrides on top of defaults. Pass ""
// to skip the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("MALLORN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Token.AccessLifetime <= 0 {
		return fmt.Errorf("token access lifetime must be positive")
	}
	if c.Token.RefreshLifetime <= c.Token.AccessLifetime {
		return fmt.Errorf("token refresh lifetime must exceed the access lifetime")
	}
	if scope := c.Token.ReuseRevocationScope; scope != "chain" && scope != "single" {
		return fmt.Errorf("invalid reuse revocation scope: %q", scope)
	}
	// Security entries hold password hashes and lockout state; they must
	// not outlive the plain profile entries.
	if c.Cache.SecurityTTL > c.Cache.ProfileTTL {
		return fmt.Errorf("security TTL must not exceed profile TTL")
	}
	if c.Reaper.Interval <= 0 {
		return fmt.Errorf("reaper interval must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.enable_reflection", false)
	v.SetDefault("server.enable_health_check", true)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mallorn")
	v.SetDefault("database.password", "mallorn")
	v.SetDefault("database.database", "mallorn_auth")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "1m")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "mallorn")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("token.issuer", "mallorn-auth")
	v.SetDefault("token.audience", "mallorn")
	v.SetDefault("token.access_lifetime", "2h")
	v.SetDefault("token.refresh_lifetime", "168h")
	v.SetDefault("token.signing_key", "")
	v.SetDefault("token.reuse_revocation_scope", "chain")

	v.SetDefault("cache.default_ttl", "10m")
	v.SetDefault("cache.profile_ttl", "30m")
	v.SetDefault("cache.security_ttl", "5m")
	v.SetDefault("cache.permission_ttl", "15m")

	v.SetDefault("reaper.interval", "1h")
	v.SetDefault("reaper.retention", "720h")

	v.SetDefault("guard.expiry_warning_window", "5m")
}
