package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Backend names shared by the transport and idempotency sections
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Projector   ProjectorConfig
	Retry       RetryConfig
	Transport   TransportConfig
	Idempotency IdempotencyConfig
	Gateway     GatewayConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int  // in minutes
	ConnMaxIdleTime int  // in minutes
	AutoMigrate     bool // apply the embedded migrations on startup
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodySize     int64
	TrustedProxies  []string
}

// ProjectorConfig controls the change projector
type ProjectorConfig struct {
	Enabled          bool
	Name             string
	BatchSize        int
	PollInterval     time.Duration
	StartFromPresent bool
}

// RetryConfig bounds the retry loop around concurrency conflicts
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// TransportConfig selects the message transport
type TransportConfig struct {
	Driver       string // memory or redis
	Stream       string
	Group        string
	Consumer     string
	BatchSize    int64
	Block        time.Duration
	MaxLen       int64
	ClaimMinIdle time.Duration
}

// IdempotencyConfig selects the consumer idempotency store
type IdempotencyConfig struct {
	Enabled   bool
	Backend   string // memory or redis
	TTL       time.Duration
	KeyPrefix string
}

// GatewayConfig tunes the simulated external data services
type GatewayConfig struct {
	RiskLatency time.Duration
	AsicLatency time.Duration
	Timeout     time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool          // Whether to enable OpenTelemetry
	CollectorEndpoint string        // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64       // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string        // Service name for traces
	Insecure          bool          // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration // How often metrics are exported
	ExportLogs        bool          // Bridge zap logs to the collector
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ORG_ prefix (e.g., ORG_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("ORG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Booleans that default to true must be registered so that an explicit
	// false from the environment is distinguishable from unset
	v.SetDefault("projector.enabled", true)
	v.SetDefault("idempotency.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:        v.GetString("redis.host"),
			Port:        v.GetInt("redis.port"),
			Password:    v.GetString("redis.password"),
			DB:          v.GetInt("redis.db"),
			PoolSize:    v.GetInt("redis.pool_size"),
			DialTimeout: v.GetDuration("redis.dial_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Projector: ProjectorConfig{
			Enabled:          v.GetBool("projector.enabled"),
			Name:             v.GetString("projector.name"),
			BatchSize:        v.GetInt("projector.batch_size"),
			PollInterval:     v.GetDuration("projector.poll_interval"),
			StartFromPresent: v.GetBool("projector.start_from_present"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retry.max_attempts"),
			BaseBackoff: v.GetDuration("retry.base_backoff"),
			MaxBackoff:  v.GetDuration("retry.max_backoff"),
		},
		Transport: TransportConfig{
			Driver:       v.GetString("transport.driver"),
			Stream:       v.GetString("transport.stream"),
			Group:        v.GetString("transport.group"),
			Consumer:     v.GetString("transport.consumer"),
			BatchSize:    v.GetInt64("transport.batch_size"),
			Block:        v.GetDuration("transport.block"),
			MaxLen:       v.GetInt64("transport.max_len"),
			ClaimMinIdle: v.GetDuration("transport.claim_min_idle"),
		},
		Idempotency: IdempotencyConfig{
			Enabled:   v.GetBool("idempotency.enabled"),
			Backend:   v.GetString("idempotency.backend"),
			TTL:       v.GetDuration("idempotency.ttl"),
			KeyPrefix: v.GetString("idempotency.key_prefix"),
		},
		Gateway: GatewayConfig{
			RiskLatency: v.GetDuration("gateway.risk_latency"),
			AsicLatency: v.GetDuration("gateway.asic_latency"),
			Timeout:     v.GetDuration("gateway.timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "org-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "organisations"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Projector.Name == "" {
		cfg.Projector.Name = "integration-messages"
	}
	if cfg.Projector.BatchSize == 0 {
		cfg.Projector.BatchSize = 10
	}
	if cfg.Projector.PollInterval == 0 {
		cfg.Projector.PollInterval = time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.BaseBackoff == 0 {
		cfg.Retry.BaseBackoff = 20 * time.Millisecond
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = time.Second
	}
	if cfg.Transport.Driver == "" {
		cfg.Transport.Driver = BackendMemory
	}
	if cfg.Transport.Stream == "" {
		cfg.Transport.Stream = "org:integration-messages"
	}
	if cfg.Transport.Group == "" {
		cfg.Transport.Group = "org-backend"
	}
	if cfg.Transport.Consumer == "" {
		cfg.Transport.Consumer = defaultConsumerName()
	}
	if cfg.Transport.BatchSize == 0 {
		cfg.Transport.BatchSize = 10
	}
	if cfg.Transport.Block == 0 {
		cfg.Transport.Block = 2 * time.Second
	}
	if cfg.Transport.MaxLen == 0 {
		cfg.Transport.MaxLen = 100000
	}
	if cfg.Transport.ClaimMinIdle == 0 {
		cfg.Transport.ClaimMinIdle = 30 * time.Second
	}
	if cfg.Idempotency.Backend == "" {
		cfg.Idempotency.Backend = BackendMemory
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
	}
	if cfg.Idempotency.KeyPrefix == "" {
		cfg.Idempotency.KeyPrefix = "org:idempotency:"
	}
	if cfg.Gateway.RiskLatency == 0 {
		cfg.Gateway.RiskLatency = 200 * time.Millisecond
	}
	if cfg.Gateway.AsicLatency == 0 {
		cfg.Gateway.AsicLatency = 300 * time.Millisecond
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 10 * time.Second
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	// Note: Insecure defaults to false for safety (TLS enabled by default)
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// defaultConsumerName names this instance within the consumer group. Each
// instance needs its own name so pending entries keep a single owner.
func defaultConsumerName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return "org-backend-" + host
	}
	return "org-backend-" + uuid.NewString()[:8]
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Projector.BatchSize < 1 {
		return fmt.Errorf("projector.batch_size must be at least 1, got %d", c.Projector.BatchSize)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.MaxBackoff < c.Retry.BaseBackoff {
		return fmt.Errorf("retry.max_backoff (%s) cannot be below retry.base_backoff (%s)",
			c.Retry.MaxBackoff, c.Retry.BaseBackoff)
	}
	if err := validateBackend("transport.driver", c.Transport.Driver); err != nil {
		return err
	}
	if err := validateBackend("idempotency.backend", c.Idempotency.Backend); err != nil {
		return err
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// An in-memory store cannot deduplicate across instances
		if c.Transport.Driver == BackendRedis && c.Idempotency.Backend == BackendMemory && c.Idempotency.Enabled {
			return fmt.Errorf("idempotency.backend must be redis when transport.driver is redis in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

func validateBackend(key, value string) error {
	switch value {
	case BackendMemory, BackendRedis:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", key, BackendMemory, BackendRedis, value)
	}
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port for the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
