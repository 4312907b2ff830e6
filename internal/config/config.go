package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config 汇总所有运行参数，来源依次为默认值、.env 文件、环境变量
type Config struct {
	Port          string        `mapstructure:"port"`
	DatabaseURL   string        `mapstructure:"database_url"`
	StoreDriver   string        `mapstructure:"store_driver"`
	RedisURL      string        `mapstructure:"redis_url"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFile       string        `mapstructure:"log_file"`
	TrendRefresh  time.Duration `mapstructure:"trend_refresh"`
	TrendWindow   time.Duration `mapstructure:"trend_window"`
	TrendCacheTTL time.Duration `mapstructure:"trend_cache_ttl"`
	SeedOnStart   bool          `mapstructure:"seed_on_start"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}
	return FromViper(viper.New())
}

// FromViper binds the environment onto v and decodes it. Split out so tests can
// preset values without touching the process environment.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	// Fallback for local dev if not set
	v.SetDefault("database_url", "host=localhost user=postgres password=postgres dbname=langvote port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("store_driver", DriverPostgres)
	v.SetDefault("redis_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("trend_refresh", "5s")
	v.SetDefault("trend_window", "1h")
	v.SetDefault("trend_cache_ttl", "2s")
	v.SetDefault("seed_on_start", false)
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url cannot be empty for the %s driver", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store_driver %q", c.StoreDriver)
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.TrendWindow <= 0 {
		return fmt.Errorf("trend_window must be positive")
	}
	if c.TrendRefresh < 0 || c.TrendCacheTTL < 0 {
		return fmt.Errorf("trend_refresh and trend_cache_ttl cannot be negative")
	}
	return nil
}

// TrendSpec is the cron spec for the trend publisher, empty when periodic refresh is off.
func (c *Config) TrendSpec() string {
	if c.TrendRefresh <= 0 {
		return ""
	}
	return "@every " + c.TrendRefresh.String()
}
