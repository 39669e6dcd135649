package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	JWT      JWTConfig
	Stock    StockConfig
	Order    OrderConfig
	Log      LogConfig
	Seed     bool
	Metrics  bool
}

type AppConfig struct {
	Port string
}

type DatabaseConfig struct {
	// Driver is one of sqlite, postgres or memory.
	Driver       string
	DSN          string
	QueryTimeout time.Duration
}

type RabbitMQConfig struct {
	// URL empty disables event publishing.
	URL      string
	Exchange string
	Queue    string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type StockConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

type OrderConfig struct {
	RestockUnpaid bool
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from an optional config.yaml and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "storefront.db")
	v.SetDefault("DATABASE_QUERY_TIMEOUT", 5*time.Second)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "storefront.orders")
	v.SetDefault("RABBITMQ_QUEUE", "order_events")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("STOCK_MAX_RETRIES", 3)
	v.SetDefault("STOCK_RETRY_BACKOFF", 5*time.Millisecond)
	v.SetDefault("ORDER_RESTOCK_UNPAID", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SEED_CATALOG", true)
	v.SetDefault("METRICS_ENABLED", true)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{Port: v.GetString("APP_PORT")},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("DATABASE_DRIVER")),
			DSN:          v.GetString("DATABASE_DSN"),
			QueryTimeout: v.GetDuration("DATABASE_QUERY_TIMEOUT"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("RABBITMQ_EXCHANGE"),
			Queue:    v.GetString("RABBITMQ_QUEUE"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    v.GetDuration("JWT_TTL"),
		},
		Stock: StockConfig{
			MaxRetries:   v.GetInt("STOCK_MAX_RETRIES"),
			RetryBackoff: v.GetDuration("STOCK_RETRY_BACKOFF"),
		},
		Order: OrderConfig{RestockUnpaid: v.GetBool("ORDER_RESTOCK_UNPAID")},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Seed:    v.GetBool("SEED_CATALOG"),
		Metrics: v.GetBool("METRICS_ENABLED"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for driver %s", c.Database.Driver)
	}
	if c.Stock.MaxRetries < 0 {
		return fmt.Errorf("STOCK_MAX_RETRIES must not be negative")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}
