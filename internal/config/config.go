package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "STARDUST"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabaseDriver = "sqlite"
	defaultDatabasePath   = "stardust.db"
	defaultLogLevel       = "info"
	defaultTokenTTL       = 60
	defaultRateLimitRPS   = 10.0
	defaultRateLimitBurst = 20
)

// AppConfig captures runtime configuration for the gameplay API server.
type AppConfig struct {
	HTTPAddress    string
	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string
	SigningSecret  string
	TokenTTL       time.Duration
	LogLevel       string

	RedisEnabled bool
	RedisAddr    string

	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("redis.enabled", false)
	configViper.SetDefault("redis.addr", "localhost:6379")
	configViper.SetDefault("ratelimit.enabled", true)
	configViper.SetDefault("ratelimit.rps", defaultRateLimitRPS)
	configViper.SetDefault("ratelimit.burst", defaultRateLimitBurst)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		DatabaseDriver:   strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:     configViper.GetString("database.path"),
		DatabaseDSN:      configViper.GetString("database.dsn"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		TokenTTL:         time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		LogLevel:         configViper.GetString("log.level"),
		RedisEnabled:     configViper.GetBool("redis.enabled"),
		RedisAddr:        configViper.GetString("redis.addr"),
		RateLimitEnabled: configViper.GetBool("ratelimit.enabled"),
		RateLimitRPS:     configViper.GetFloat64("ratelimit.rps"),
		RateLimitBurst:   configViper.GetInt("ratelimit.burst"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.RedisEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("redis.addr is required when redis.enabled is set")
	}
	if c.RateLimitEnabled {
		if c.RateLimitRPS <= 0 {
			return fmt.Errorf("ratelimit.rps must be positive")
		}
		if c.RateLimitBurst <= 0 {
			return fmt.Errorf("ratelimit.burst must be positive")
		}
	}
	return nil
}
