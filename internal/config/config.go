package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPgx  = "pgx"
	DriverGorm = "gorm"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBDriver        string        `mapstructure:"DB_DRIVER"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	SchemaBootstrap bool          `mapstructure:"SCHEMA_BOOTSTRAP"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	CacheTTL        time.Duration `mapstructure:"CACHE_TTL"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RoutePrefix     string        `mapstructure:"ROUTE_PREFIX"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit       string        `mapstructure:"BODY_LIMIT"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_DRIVER", DriverPgx)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SCHEMA_BOOTSTRAP", true)
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ROUTE_PREFIX", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_DRIVER", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"SCHEMA_BOOTSTRAP", "REDIS_URL", "CACHE_TTL", "CORS_ORIGINS", "ROUTE_PREFIX",
		"REQUEST_TIMEOUT", "BODY_LIMIT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	cfg.RoutePrefix = strings.TrimRight(cfg.RoutePrefix, "/")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// CacheEnabled reports whether the patient list should be cached in Redis.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != "" && c.CacheTTL > 0
}

// Validate checks that the configuration is usable before any connection
// is opened.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPgx, DriverGorm:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPgx, DriverGorm, c.DBDriver)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
	}
	if c.RoutePrefix != "" && !strings.HasPrefix(c.RoutePrefix, "/") {
		return fmt.Errorf("ROUTE_PREFIX must start with '/', got %q", c.RoutePrefix)
	}
	return nil
}
