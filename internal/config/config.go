package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	ServiceName string `mapstructure:"SERVICE_NAME"`

	DBDriver       string `mapstructure:"DB_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`

	UseRedis        bool   `mapstructure:"USE_REDIS"`
	RedisURL        string `mapstructure:"REDIS_URL"`
	CacheTTLSeconds int    `mapstructure:"CACHE_TTL_SECONDS"`

	JWTSecret                string `mapstructure:"JWT_SECRET"`
	AccessTokenExpireMinutes int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`

	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange string `mapstructure:"RABBITMQ_EXCHANGE"`

	NotifyWebhookURL     string `mapstructure:"NOTIFY_WEBHOOK_URL"`
	NotifyDefaultContact string `mapstructure:"NOTIFY_DEFAULT_CONTACT"`
	NotifyWorkers        int    `mapstructure:"NOTIFY_WORKERS"`
	NotifyBuffer         int    `mapstructure:"NOTIFY_BUFFER"`

	CheckoutMaxAttempts    uint `mapstructure:"CHECKOUT_MAX_ATTEMPTS"`
	CheckoutRetryInitialMS int  `mapstructure:"CHECKOUT_RETRY_INITIAL_MS"`
	CheckoutRetryMaxMS     int  `mapstructure:"CHECKOUT_RETRY_MAX_MS"`

	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

var defaults = map[string]any{
	"PORT":                        "8080",
	"LOG_LEVEL":                   "info",
	"SERVICE_NAME":                "merch-service",
	"DB_DRIVER":                   "mysql",
	"DATABASE_URL":                "",
	"DB_MAX_OPEN_CONNS":           50,
	"DB_MAX_IDLE_CONNS":           10,
	"USE_REDIS":                   false,
	"REDIS_URL":                   "redis://localhost:6379/0",
	"CACHE_TTL_SECONDS":           60,
	"JWT_SECRET":                  "",
	"ACCESS_TOKEN_EXPIRE_MINUTES": 30,
	"RABBITMQ_URL":                "",
	"RABBITMQ_EXCHANGE":           "merch.exchange",
	"NOTIFY_WEBHOOK_URL":          "",
	"NOTIFY_DEFAULT_CONTACT":      "orders@localhost",
	"NOTIFY_WORKERS":              2,
	"NOTIFY_BUFFER":               256,
	"CHECKOUT_MAX_ATTEMPTS":       3,
	"CHECKOUT_RETRY_INITIAL_MS":   20,
	"CHECKOUT_RETRY_MAX_MS":       200,
	"ADMIN_USERNAME":              "",
	"ADMIN_PASSWORD":              "",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
}

// Load reads an optional .env file, then the process environment. The
// environment wins over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	switch c.DBDriver {
	case "mysql", "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL must be set for driver %q", c.DBDriver)
		}
	case "memory":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return errors.New("config: ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return errors.New("config: ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) RetryInitial() time.Duration {
	return time.Duration(c.CheckoutRetryInitialMS) * time.Millisecond
}

func (c *Config) RetryMax() time.Duration {
	return time.Duration(c.CheckoutRetryMaxMS) * time.Millisecond
}
