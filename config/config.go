package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
)

// Gateway providers
const (
	ProviderAbacatePay = "abacatepay"
	ProviderStripe     = "stripe"
	ProviderSandbox    = "sandbox"
)

// AbacatePay schema versions
const (
	SchemaLegacy = "legacy"
	SchemaV1     = "v1"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	Payment   PaymentConfig
	HTTP      HTTPConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type RedisConfig struct {
	URL string
}

// GatewayConfig holds the upstream PIX gateway settings. APIKey is read once
// at startup and passed into the adapter.
type GatewayConfig struct {
	Provider      string
	Schema        string // abacatepay only: legacy or v1
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	RPS           float64
	SandboxPolls  int // sandbox only: polls before an intent settles
}

// PaymentConfig describes the single product sold through the checkout
type PaymentConfig struct {
	AmountCents      int64
	ExpiresIn        time.Duration
	Description      string
	ExternalIDPrefix string
}

// ReconcileConfig drives the background sweep that settles intents whose
// buyers stopped polling
type ReconcileConfig struct {
	Enabled   bool
	Interval  time.Duration
	Workers   int
	BatchSize int
}

type HTTPConfig struct {
	AllowedOrigins           []string
	CreateRateLimitPerMinute int
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 4000),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Gateway: GatewayConfig{
			Provider:      strings.ToLower(getEnv("GATEWAY_PROVIDER", ProviderAbacatePay)),
			Schema:        strings.ToLower(getEnv("GATEWAY_SCHEMA", SchemaLegacy)),
			BaseURL:       getEnv("GATEWAY_BASE_URL", ""),
			APIKey:        getEnv("GATEWAY_API_KEY", os.Getenv("ABACATE_PAY_API_KEY")),
			WebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			Timeout:       getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
			RPS:           getEnvFloat("GATEWAY_RPS", 10),
			SandboxPolls:  getEnvInt("GATEWAY_SANDBOX_POLLS", 3),
		},
		Payment: PaymentConfig{
			AmountCents:      int64(getEnvInt("PAYMENT_AMOUNT_CENTS", 500)),
			ExpiresIn:        getEnvDuration("PAYMENT_EXPIRES_IN", time.Hour),
			Description:      getEnv("PAYMENT_DESCRIPTION", "Acesso Vitalício - Balança Web Simples"),
			ExternalIDPrefix: getEnv("PAYMENT_EXTERNAL_ID_PREFIX", "balanca-web"),
		},
		HTTP: HTTPConfig{
			AllowedOrigins:           getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			CreateRateLimitPerMinute: getEnvInt("CREATE_RATE_LIMIT_PER_MINUTE", 10),
		},
		Reconcile: ReconcileConfig{
			Enabled:   getEnvBool("RECONCILE_ENABLED", true),
			Interval:  getEnvDuration("RECONCILE_INTERVAL", time.Minute),
			Workers:   getEnvInt("RECONCILE_WORKERS", 4),
			BatchSize: getEnvInt("RECONCILE_BATCH_SIZE", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	switch c.Gateway.Provider {
	case ProviderAbacatePay:
		if c.Gateway.Schema != SchemaLegacy && c.Gateway.Schema != SchemaV1 {
			return &apperrors.ConfigurationError{Key: "GATEWAY_SCHEMA", Reason: fmt.Sprintf("unknown schema %q", c.Gateway.Schema)}
		}
		fallthrough
	case ProviderStripe:
		if c.Gateway.APIKey == "" {
			return &apperrors.ConfigurationError{Key: "GATEWAY_API_KEY", Reason: "must be set"}
		}
	case ProviderSandbox:
	default:
		return &apperrors.ConfigurationError{Key: "GATEWAY_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.Gateway.Provider)}
	}
	if c.Gateway.RPS <= 0 {
		return fmt.Errorf("gateway rps must be positive")
	}
	if c.Payment.AmountCents < 1 {
		return fmt.Errorf("payment amount must be at least 1 cent")
	}
	if c.HTTP.CreateRateLimitPerMinute < 1 {
		return fmt.Errorf("create rate limit must be at least 1 per minute")
	}
	if c.Reconcile.Enabled && (c.Reconcile.Interval <= 0 || c.Reconcile.Workers < 1) {
		return fmt.Errorf("reconcile interval and workers must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
