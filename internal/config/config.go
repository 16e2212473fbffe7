package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Log      LogConfig
	Gateway  GatewayConfig
	SMS      SMSConfig
	Checkout CheckoutConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"storefront_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// GatewayConfig holds payment-gateway configuration. Sandbox mode accepts any
// merchant id; production requires a real one.
type GatewayConfig struct {
	MerchantID  string `envconfig:"ZARINPAL_MERCHANT_ID" default:""`
	Sandbox     bool   `envconfig:"ZARINPAL_SANDBOX" default:"true"`
	CallbackURL string `envconfig:"PAYMENT_CALLBACK_URL" default:"http://localhost:3000/payments/callback"`
	Timeout     int    `envconfig:"GATEWAY_TIMEOUT" default:"10"` // seconds
}

// SMSConfig holds the SMS provider configuration. With Debug set, messages
// are logged instead of sent.
type SMSConfig struct {
	APIKey  string `envconfig:"SMS_API_KEY" default:""`
	Sender  string `envconfig:"SMS_SENDER" default:""`
	Debug   bool   `envconfig:"SMS_DEBUG" default:"true"`
	Timeout int    `envconfig:"SMS_TIMEOUT" default:"30"` // seconds
}

// CheckoutConfig holds the order-lifecycle timing knobs.
type CheckoutConfig struct {
	PaymentWindowMinutes int `envconfig:"PAYMENT_WINDOW_MINUTES" default:"120"`
	SweepIntervalMinutes int `envconfig:"SWEEP_INTERVAL_MINUTES" default:"15"`
}

// PaymentWindow is how long after creation a pending order stays payable.
func (c CheckoutConfig) PaymentWindow() time.Duration {
	return time.Duration(c.PaymentWindowMinutes) * time.Minute
}

// SweepInterval is how often the expiry sweeper runs.
func (c CheckoutConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
