package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Secrets  SecretsConfig
	Billing  BillingConfig
	Logger   LoggerConfig
}

// ServerConfig holds the HTTP server configuration. The webhook listens on
// its own port so it can be exposed separately from the interactive API.
type ServerConfig struct {
	Host        string
	APIPort     int
	WebhookPort int
	MetricsPort int

	// CronSecret authenticates scheduler-triggered batch requests
	CronSecret string
	// AdminAPIKey gates the billing agreement admin endpoints
	AdminAPIKey string

	// SuccessRedirectURL and FailureRedirectURL receive the buyer after the
	// strong customer authentication return
	SuccessRedirectURL string
	FailureRedirectURL string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// GatewayConfig holds the Amazon Pay merchant configuration. SecretKey is
// resolved through the secret manager at startup, never read from the
// environment directly in production.
type GatewayConfig struct {
	MerchantID string
	AccessKey  string
	SecretKey  string
	ClientID   string
	Region     string // de, uk, us, jp
	Sandbox    bool
	Timeout    int // request timeout in seconds

	// StoreName and SellerNoteTemplate appear on the buyer's payment overview
	StoreName          string
	SellerNoteTemplate string
}

// SecretsConfig selects where the merchant secret key is resolved from
type SecretsConfig struct {
	// Provider is one of env, aws, vault
	Provider string
	// SecretName is the lookup key at the provider (AWS secret id or Vault
	// path). Unused for the env provider.
	SecretName string
}

// BillingConfig holds the recurring billing policy
type BillingConfig struct {
	// MaxCaptureAttempts is the failed-attempt budget per invoice before the
	// billing agreement is cancelled
	MaxCaptureAttempts int
	// BatchSize bounds one billing run; zero uses the repository default
	BatchSize int32
	// RefundSweepEnabled disables the open-refund poller when the deployment
	// relies on notifications alone
	RefundSweepEnabled bool
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			APIPort:            getEnvAsInt("API_PORT", 8080),
			WebhookPort:        getEnvAsInt("WEBHOOK_PORT", 8081),
			MetricsPort:        getEnvAsInt("METRICS_PORT", 9090),
			CronSecret:         getEnv("CRON_SECRET", ""),
			AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
			SuccessRedirectURL: getEnv("SUCCESS_REDIRECT_URL", ""),
			FailureRedirectURL: getEnv("FAILURE_REDIRECT_URL", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "amazonpay_service"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Gateway: GatewayConfig{
			MerchantID:         getEnv("AMAZON_MERCHANT_ID", ""),
			AccessKey:          getEnv("AMAZON_ACCESS_KEY", ""),
			SecretKey:          getEnv("AMAZON_SECRET_KEY", ""),
			ClientID:           getEnv("AMAZON_CLIENT_ID", ""),
			Region:             getEnv("AMAZON_REGION", "de"),
			Sandbox:            getEnvAsBool("AMAZON_SANDBOX", true),
			Timeout:            getEnvAsInt("AMAZON_TIMEOUT", 30),
			StoreName:          getEnv("STORE_NAME", ""),
			SellerNoteTemplate: getEnv("SELLER_NOTE_TEMPLATE", ""),
		},
		Secrets: SecretsConfig{
			Provider:   getEnv("SECRETS_PROVIDER", "env"),
			SecretName: getEnv("SECRETS_NAME", ""),
		},
		Billing: BillingConfig{
			MaxCaptureAttempts: getEnvAsInt("MAX_CAPTURE_ATTEMPTS", 3),
			BatchSize:          int32(getEnvAsInt("BILLING_BATCH_SIZE", 100)),
			RefundSweepEnabled: getEnvAsBool("REFUND_SWEEP_ENABLED", true),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Gateway.MerchantID == "" {
		return nil, fmt.Errorf("AMAZON_MERCHANT_ID is required")
	}
	if cfg.Gateway.AccessKey == "" {
		return nil, fmt.Errorf("AMAZON_ACCESS_KEY is required")
	}
	if cfg.Secrets.Provider == "env" && cfg.Gateway.SecretKey == "" {
		return nil, fmt.Errorf("AMAZON_SECRET_KEY is required with SECRETS_PROVIDER=env")
	}
	if cfg.Secrets.Provider != "env" && cfg.Secrets.SecretName == "" {
		return nil, fmt.Errorf("SECRETS_NAME is required with SECRETS_PROVIDER=%s", cfg.Secrets.Provider)
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
