package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	pkgconfig "github.com/utafrali/pos-register/pkg/config"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds all configuration for the register service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort              int `env:"REGISTER_HTTP_PORT" envDefault:"8090"`
	RequestTimeoutSeconds int `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// Store identity and pricing
	StoreID               string          `env:"STORE_ID" envDefault:"1"`
	DefaultTaxRatePercent decimal.Decimal `env:"DEFAULT_TAX_RATE_PERCENT" envDefault:"8.25"`

	// Back-office store API
	StoreAPIURL            string `env:"STORE_API_URL" envDefault:"http://localhost:8000/api/"`
	StoreAPIToken          string `env:"STORE_API_TOKEN"`
	StoreAPITimeoutSeconds int    `env:"STORE_API_TIMEOUT_SECONDS" envDefault:"10"`
	StoreAPIMaxRetries     int    `env:"STORE_API_MAX_RETRIES" envDefault:"3"`

	// Circuit breaker settings for store API calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// JWT authentication
	JWTSecret      string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	JWTExpiryHours int    `env:"JWT_EXPIRY_HOURS" envDefault:"12"`

	// Redis (held orders)
	RedisHost         string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort         int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass         string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB           int    `env:"REDIS_DB" envDefault:"0"`
	HeldOrderTTLHours int    `env:"HELD_ORDER_TTL_HOURS" envDefault:"0"`

	// PostgreSQL (audit log)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"pos"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"pos_secret"`
	PostgresDB   string `env:"REGISTER_DB_NAME" envDefault:"pos_register"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"pos-register"`

	// Manager approval attempts per terminal
	DiscountAttemptsPerMinute int `env:"DISCOUNT_ATTEMPTS_PER_MINUTE" envDefault:"6"`
	DiscountAttemptsBurst     int `env:"DISCOUNT_ATTEMPTS_BURST" envDefault:"3"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load register config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.StoreID == "" {
		return fmt.Errorf("STORE_ID is required")
	}
	if c.DefaultTaxRatePercent.IsNegative() {
		return fmt.Errorf("DEFAULT_TAX_RATE_PERCENT must not be negative, got %s", c.DefaultTaxRatePercent)
	}
	if c.StoreAPIURL == "" {
		return fmt.Errorf("STORE_API_URL is required")
	}
	if _, err := url.ParseRequestURI(c.StoreAPIURL); err != nil {
		return fmt.Errorf("invalid STORE_API_URL %q: %w", c.StoreAPIURL, err)
	}
	if c.StoreAPIMaxRetries < 0 {
		return fmt.Errorf("STORE_API_MAX_RETRIES must not be negative, got %d", c.StoreAPIMaxRetries)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment != "development" && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be changed from default value in %s environment", c.Environment)
	}
	if c.HeldOrderTTLHours < 0 {
		return fmt.Errorf("HELD_ORDER_TTL_HOURS must not be negative, got %d", c.HeldOrderTTLHours)
	}
	if c.DiscountAttemptsPerMinute < 0 || c.DiscountAttemptsBurst < 0 {
		return fmt.Errorf("DISCOUNT_ATTEMPTS_PER_MINUTE and DISCOUNT_ATTEMPTS_BURST must not be negative")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// HeldOrderTTL returns how long held orders are kept. Zero keeps them until
// they are retrieved or deleted.
func (c *Config) HeldOrderTTL() time.Duration {
	return time.Duration(c.HeldOrderTTLHours) * time.Hour
}

// RequestTimeout returns the per-request handler timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
