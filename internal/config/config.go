package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Usage    UsageConfig    `mapstructure:"usage_tracking"`
	Metadata MetadataConfig `mapstructure:"metadata"`
}

// ServerConfig defines the metrics/health endpoint
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "redis" or "sqlite"
	Path  string      `mapstructure:"path"` // sqlite database file
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PolicyConfig defines the optional Rego limit policy
type PolicyConfig struct {
	PolicyDir string `mapstructure:"policy_dir"` // empty disables policy evaluation
}

// UsageConfig defines usage tracking settings
type UsageConfig struct {
	PollInterval            string `mapstructure:"poll_interval"`
	RetryDelay              string `mapstructure:"retry_delay"`
	DefaultAppLimit         string `mapstructure:"default_app_limit"`
	GlobalDailyLimitMinutes int64  `mapstructure:"global_daily_limit_minutes"`
	MaxEventsPerQuery       int    `mapstructure:"max_events_per_query"`
	Timezone                string `mapstructure:"timezone"`
	DailyResetTime          string `mapstructure:"daily_reset_time"`
	RetentionDays           int    `mapstructure:"retention_days"`
}

// MetadataConfig defines app metadata resolution settings
type MetadataConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// Location returns the configured time zone used for local days and hours
func (u UsageConfig) Location() (*time.Location, error) {
	if u.Timezone == "" || strings.EqualFold(u.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(u.Timezone)
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("LIMITLINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns a configuration holding only default values
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// ValidKeys returns every configuration key the application understands
func ValidKeys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.metrics_port", 9090)

	// Storage defaults
	v.SetDefault("storage.type", "redis")
	v.SetDefault("storage.path", "/var/lib/limitliner/limitliner.db")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Policy defaults
	v.SetDefault("policy.policy_dir", "")

	// Usage tracking defaults
	v.SetDefault("usage_tracking.poll_interval", "1m")
	v.SetDefault("usage_tracking.retry_delay", "1s")
	v.SetDefault("usage_tracking.default_app_limit", "2h")
	v.SetDefault("usage_tracking.global_daily_limit_minutes", 300)
	v.SetDefault("usage_tracking.max_events_per_query", 500000)
	v.SetDefault("usage_tracking.timezone", "Local")
	v.SetDefault("usage_tracking.daily_reset_time", "00:00")
	v.SetDefault("usage_tracking.retention_days", 90)

	// Metadata defaults
	v.SetDefault("metadata.cache_size", 512)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "redis"
	case "redis":
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for sqlite storage")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (must be redis or sqlite)", cfg.Storage.Type)
	}

	for name, value := range map[string]string{
		"usage_tracking.poll_interval":     cfg.Usage.PollInterval,
		"usage_tracking.retry_delay":       cfg.Usage.RetryDelay,
		"usage_tracking.default_app_limit": cfg.Usage.DefaultAppLimit,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: must not be negative", name)
		}
	}

	if cfg.Usage.GlobalDailyLimitMinutes < 0 {
		return fmt.Errorf("invalid global daily limit: %d", cfg.Usage.GlobalDailyLimitMinutes)
	}
	if cfg.Usage.MaxEventsPerQuery < 0 {
		return fmt.Errorf("invalid max events per query: %d", cfg.Usage.MaxEventsPerQuery)
	}
	if cfg.Usage.RetentionDays < 0 {
		return fmt.Errorf("invalid retention days: %d", cfg.Usage.RetentionDays)
	}
	if _, err := time.Parse("15:04", cfg.Usage.DailyResetTime); err != nil {
		return fmt.Errorf("invalid daily reset time %q (expected HH:MM): %w", cfg.Usage.DailyResetTime, err)
	}
	if _, err := cfg.Usage.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Usage.Timezone, err)
	}

	return nil
}
