package app

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/crmwarm/internal/warmer"
)

const (
	envPrefix           = "CRMWARM"
	defaultRedisAddress = "127.0.0.1:6379"
)

// Config represents the runtime configuration of the snapshot warmer.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Warmer   WarmerConfig   `mapstructure:"warmer"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig selects sqlite, postgres or mysql. Host drivers read their own block.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Postgres DBAuthConfig      `mapstructure:"postgres"`
	MySQL    DBAuthConfig      `mapstructure:"mysql"`
	Options  map[string]string `mapstructure:"options"`
}

// DBAuthConfig is the host/credential block of postgres and mysql.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig selects and configures the snapshot cache backend.
type CacheConfig struct {
	// Driver is "redis" (default) or "database".
	Driver   string           `mapstructure:"driver"`
	Redis    RedisCacheConfig `mapstructure:"redis"`
	Database DatabaseConfig   `mapstructure:"database"`
}

// RedisCacheConfig is the cache endpoint. key_prefix is optional.
type RedisCacheConfig struct {
	Address   string        `mapstructure:"address"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TLS       bool          `mapstructure:"tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// WarmerConfig holds run defaults that command line flags override.
type WarmerConfig struct {
	TTL      int64  `mapstructure:"ttl"`
	Schedule string `mapstructure:"schedule"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// TTLDuration converts the configured TTL, rejecting values that are not positive or
// overflow a time.Duration.
func (c WarmerConfig) TTLDuration() (time.Duration, error) {
	return warmer.TTLFromSeconds(c.TTL)
}

// LoadConfig reads config.yaml from ./config and the given paths, then applies CRMWARM_*
// environment overrides. The REDIS_HOST, REDIS_PORT, REDIS_PASSWORD and REDIS_DB variables
// used by the CRM web application are honoured too.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyLegacyRedisAddress(v, &config)

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/crm.sqlite")
	v.SetDefault("database.dsn", "")

	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.redis.address", defaultRedisAddress)
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.key_prefix", "")
	v.SetDefault("cache.database.driver", "sqlite")
	v.SetDefault("cache.database.path", "./data/crm-cache.sqlite")
	v.SetDefault("cache.database.dsn", "")

	v.SetDefault("warmer.ttl", 900)
	v.SetDefault("warmer.schedule", "@every 15m")

	v.SetDefault("metrics.textfile", "")
}

func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"cache.redis.password": {envPrefix + "_CACHE_REDIS_PASSWORD", "REDIS_PASSWORD"},
		"cache.redis.db":       {envPrefix + "_CACHE_REDIS_DB", "REDIS_DB"},
		"legacy.redis_host":    {"REDIS_HOST"},
		"legacy.redis_port":    {"REDIS_PORT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// applyLegacyRedisAddress builds the address from REDIS_HOST/REDIS_PORT unless an address
// was configured explicitly.
func applyLegacyRedisAddress(v *viper.Viper, cfg *Config) {
	host := strings.TrimSpace(v.GetString("legacy.redis_host"))
	port := strings.TrimSpace(v.GetString("legacy.redis_port"))
	if host == "" && port == "" {
		return
	}
	if cfg.Cache.Redis.Address != defaultRedisAddress {
		return
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	cfg.Cache.Redis.Address = net.JoinHostPort(host, port)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
