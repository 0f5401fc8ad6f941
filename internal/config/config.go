package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Checkout     CheckoutConfig
	Payment      PaymentConfig
	Kafka        KafkaConfig
	Notification NotificationConfig
	Import       ImportConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey    string
	JWTSecret string
}

// CheckoutConfig holds the pricing policy and order-number settings for the
// checkout pipeline. Shipping is flat-rate: free at or above the threshold,
// FlatRateCents otherwise.
type CheckoutConfig struct {
	Currency                  string
	OrderNumberPrefix         string
	FreeShippingThresholdCents int64
	FlatShippingRateCents     int64
	PendingOrderTTL           time.Duration
	ReaperInterval            time.Duration
}

// PaymentConfig holds hosted payment gateway settings.
type PaymentConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
}

// KafkaConfig holds order-event publishing settings. An empty broker list
// disables publishing; outbox rows still accumulate as an audit trail.
type KafkaConfig struct {
	Brokers          []string
	Topic            string
	DispatchInterval time.Duration
}

// NotificationConfig holds the fire-and-forget email dispatch settings.
type NotificationConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ImportConfig holds discount-code bulk import settings. Files are gzipped
// CSV, loaded from S3 when enabled there, with local file system fallback.
type ImportConfig struct {
	Enabled   bool
	FilePaths []string
	S3Enabled bool
	S3Bucket  string
	S3Region  string
	S3Prefix  string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey:    getEnv("API_KEY", ""),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Checkout: CheckoutConfig{
			Currency:                   getEnv("CHECKOUT_CURRENCY", "usd"),
			OrderNumberPrefix:          getEnv("ORDER_NUMBER_PREFIX", "STF"),
			FreeShippingThresholdCents: getEnvAsInt64("FREE_SHIPPING_THRESHOLD_CENTS", 20000),
			FlatShippingRateCents:      getEnvAsInt64("FLAT_SHIPPING_RATE_CENTS", 2500),
			PendingOrderTTL:            getEnvAsDuration("PENDING_ORDER_TTL", 24*time.Hour),
			ReaperInterval:             getEnvAsDuration("REAPER_INTERVAL", 15*time.Minute),
		},
		Payment: PaymentConfig{
			BaseURL:       getEnv("PAYMENT_BASE_URL", ""),
			APIKey:        getEnv("PAYMENT_API_KEY", ""),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("PAYMENT_SUCCESS_URL", ""),
			CancelURL:     getEnv("PAYMENT_CANCEL_URL", ""),
			Timeout:       getEnvAsDuration("PAYMENT_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:          splitCSV(getEnv("KAFKA_BROKERS", "")),
			Topic:            getEnv("KAFKA_TOPIC", "storefront.orders"),
			DispatchInterval: getEnvAsDuration("OUTBOX_DISPATCH_INTERVAL", 5*time.Second),
		},
		Notification: NotificationConfig{
			BaseURL: getEnv("NOTIFICATION_BASE_URL", ""),
			Timeout: getEnvAsDuration("NOTIFICATION_TIMEOUT", 5*time.Second),
		},
		Import: ImportConfig{
			Enabled:   getEnvAsBool("DISCOUNT_IMPORT_ENABLED", false),
			FilePaths: splitCSV(getEnv("DISCOUNT_IMPORT_FILES", "")),
			S3Enabled: getEnvAsBool("S3_ENABLED", false),
			S3Bucket:  getEnv("S3_BUCKET", ""),
			S3Region:  getEnv("S3_REGION", "us-east-1"),
			S3Prefix:  getEnv("S3_PREFIX", "discounts/"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if len(c.Checkout.OrderNumberPrefix) != 3 {
		return fmt.Errorf("order number prefix must be exactly 3 characters: %q", c.Checkout.OrderNumberPrefix)
	}

	if c.Checkout.FreeShippingThresholdCents < 0 || c.Checkout.FlatShippingRateCents < 0 {
		return fmt.Errorf("shipping configuration must be non-negative")
	}

	if c.Checkout.PendingOrderTTL <= 0 {
		return fmt.Errorf("pending order TTL must be positive")
	}

	if c.Payment.BaseURL == "" {
		return fmt.Errorf("payment gateway base URL is required")
	}

	if c.Payment.APIKey == "" {
		return fmt.Errorf("payment gateway API key is required")
	}

	if c.Payment.WebhookSecret == "" {
		return fmt.Errorf("payment webhook secret is required")
	}

	if c.Import.Enabled && len(c.Import.FilePaths) == 0 {
		return fmt.Errorf("discount import files are required when import is enabled")
	}

	if c.Import.S3Enabled {
		if c.Import.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.Import.S3Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as an int64 or returns a default value.
func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// splitCSV splits a comma-separated list, dropping empty entries.
func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
