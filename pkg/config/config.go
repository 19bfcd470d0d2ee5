// Package config loads TOML configuration with viper, supporting APP_
// prefixed environment overrides, defaults and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zebutrade/papertrade/pkg/logger"
)

// Config is the full service configuration.
type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`

	HTTP         HTTPConfig         `mapstructure:"http"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	AlphaVantage AlphaVantageConfig `mapstructure:"alphavantage"`
	Watchlist    WatchlistConfig    `mapstructure:"watchlist"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Logger       logger.Config      `mapstructure:"logger"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// HTTPConfig configures the gin server.
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig configures the PostgreSQL durable tier.
type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    int    `mapstructure:"conn_max_lifetime"`
	LogEnabled         bool   `mapstructure:"log_enabled"`
	SlowQueryThreshold int    `mapstructure:"slow_query_threshold"`
}

// RedisConfig configures the fast cache tier.
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxPoolSize  int    `mapstructure:"max_pool_size"`
	ConnTimeout  int    `mapstructure:"conn_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// KafkaConfig configures the price-event producer. Empty Brokers disables
// publishing.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	MaxRetries   int      `mapstructure:"max_retries"`
	RetryBackoff int      `mapstructure:"retry_backoff"`
}

// AlphaVantageConfig configures the upstream price provider and the tiered
// lookup policy around it.
type AlphaVantageConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	// Free-tier quotas: 5 calls per minute, 500 per day.
	CallsPerMinute int `mapstructure:"calls_per_minute"`
	CallsPerDay    int `mapstructure:"calls_per_day"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// CacheTTLMinutes is the fast-tier TTL for per-day entries.
	CacheTTLMinutes int `mapstructure:"cache_ttl_minutes"`
	// CurrentPriceMaxAgeMinutes is how old a durable-tier price may be and
	// still satisfy GetCurrentPrice without a provider call.
	CurrentPriceMaxAgeMinutes int `mapstructure:"current_price_max_age_minutes"`
}

// CacheTTL returns the fast-tier TTL as a duration.
func (c AlphaVantageConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// CurrentPriceMaxAge returns the durable-tier freshness window.
func (c AlphaVantageConfig) CurrentPriceMaxAge() time.Duration {
	return time.Duration(c.CurrentPriceMaxAgeMinutes) * time.Minute
}

// WatchlistConfig configures the background refresh scheduler.
type WatchlistConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// CronSpec is a robfig/cron expression for the refresh sweep.
	CronSpec string `mapstructure:"cron_spec"`
	// DefaultRefreshMinutes applies to entries created without an explicit
	// interval.
	DefaultRefreshMinutes int `mapstructure:"default_refresh_minutes"`
}

// RateLimitConfig throttles the public HTTP surface per client IP.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	QPS     int  `mapstructure:"qps"`
	Burst   int  `mapstructure:"burst"`
}

// MetricsConfig exposes Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load reads the TOML file at configPath, applies defaults and environment
// overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the invariants that would otherwise only surface at the
// first request.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.AlphaVantage.APIKey == "" {
		return fmt.Errorf("alphavantage api_key is required")
	}
	if c.AlphaVantage.CallsPerMinute <= 0 || c.AlphaVantage.CallsPerDay <= 0 {
		return fmt.Errorf("alphavantage quotas must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.topic", "marketdata.price.refreshed")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("alphavantage.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("alphavantage.calls_per_minute", 5)
	v.SetDefault("alphavantage.calls_per_day", 500)
	v.SetDefault("alphavantage.timeout_seconds", 10)
	v.SetDefault("alphavantage.cache_ttl_minutes", 60)
	v.SetDefault("alphavantage.current_price_max_age_minutes", 15)

	v.SetDefault("watchlist.enabled", true)
	v.SetDefault("watchlist.cron_spec", "@every 5m")
	v.SetDefault("watchlist.default_refresh_minutes", 30)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.qps", 20)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}

// GetEnv reads an environment variable with a fallback.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
