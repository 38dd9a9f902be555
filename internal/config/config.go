// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ErrConfiguration is returned when required settings are missing or malformed.
var ErrConfiguration = errors.New("config: invalid configuration")

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL    string // PostgreSQL connection string (optional, uses in-memory if not set)
	MigrateOnStart bool

	// Security
	AdminSecret        string
	CORSOrigins        []string
	AdminRatePerMinute int

	// Observability
	OTLPEndpoint string

	Zoho    ZohoConfig
	Billing BillingConfig
}

// ZohoConfig holds the billing provider connection settings.
type ZohoConfig struct {
	BaseURL        string
	OrganizationID string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	AccessToken    string // static token, used as-is when no refresh token is configured
	Timeout        time.Duration
}

// HasCredentials reports whether a token can be obtained with these settings.
func (z ZohoConfig) HasCredentials() bool {
	if z.AccessToken != "" {
		return true
	}
	return z.RefreshToken != "" && z.ClientID != "" && z.ClientSecret != ""
}

// BillingConfig holds the billing lifecycle rules and job schedules.
type BillingConfig struct {
	JobsEnabled bool

	SuspensionDays    int
	WarningDays       []int
	WarningWindowDays int

	WarningInterval    time.Duration
	SuspensionInterval time.Duration
	ProvisionInterval  time.Duration
	StartupDelay       time.Duration

	DefaultItemID        string
	DefaultMonthlyAmount decimal.Decimal
	DefaultCurrency      string
	InvoiceNotes         string
	InvoiceTerms         string
}

// Defaults
const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultAdminRatePerMinute = 120
	DefaultZohoBaseURL        = "https://www.zohoapis.com/books/v3"
	DefaultZohoTokenURL       = "https://accounts.zoho.com/oauth/v2/token"
	DefaultZohoTimeout        = 30 * time.Second
	DefaultSuspensionDays     = 105
	DefaultWarningWindowDays  = 7
	DefaultWarningInterval    = 24 * time.Hour
	DefaultSuspendInterval    = 24 * time.Hour
	DefaultProvisionInterval  = 6 * time.Hour
	DefaultStartupDelay       = 5 * time.Minute
	DefaultMonthlyAmount      = "49.00"
	DefaultCurrency           = "USD"
	DefaultInvoiceTerms       = "Payment due within 15 days of the invoice date."
)

// DefaultWarningDays are the early warning milestones, in days overdue.
var DefaultWarningDays = []int{30, 60, 90}

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	amount, err := decimal.NewFromString(getEnv("BILLING_DEFAULT_MONTHLY_AMOUNT", DefaultMonthlyAmount))
	if err != nil {
		return nil, fmt.Errorf("%w: BILLING_DEFAULT_MONTHLY_AMOUNT: %v", ErrConfiguration, err)
	}
	warningDays, err := getEnvIntList("BILLING_WARNING_DAYS", DefaultWarningDays)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrateOnStart:     getEnvBool("MIGRATE_ON_START", false),
		AdminSecret:        os.Getenv("ADMIN_SECRET"),
		CORSOrigins:        getEnvList("CORS_ALLOWED_ORIGINS"),
		AdminRatePerMinute: int(getEnvInt64("ADMIN_RATE_LIMIT_PER_MINUTE", DefaultAdminRatePerMinute)),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Zoho: ZohoConfig{
			BaseURL:        getEnv("ZOHO_BASE_URL", DefaultZohoBaseURL),
			OrganizationID: os.Getenv("ZOHO_ORGANIZATION_ID"),
			TokenURL:       getEnv("ZOHO_TOKEN_URL", DefaultZohoTokenURL),
			ClientID:       os.Getenv("ZOHO_CLIENT_ID"),
			ClientSecret:   os.Getenv("ZOHO_CLIENT_SECRET"),
			RefreshToken:   os.Getenv("ZOHO_REFRESH_TOKEN"),
			AccessToken:    os.Getenv("ZOHO_ACCESS_TOKEN"),
			Timeout:        getEnvDuration("ZOHO_TIMEOUT", DefaultZohoTimeout),
		},
		Billing: BillingConfig{
			JobsEnabled:          getEnvBool("BILLING_JOBS_ENABLED", true),
			SuspensionDays:       int(getEnvInt64("BILLING_SUSPENSION_DAYS", DefaultSuspensionDays)),
			WarningDays:          warningDays,
			WarningWindowDays:    int(getEnvInt64("BILLING_WARNING_WINDOW_DAYS", DefaultWarningWindowDays)),
			WarningInterval:      getEnvDuration("BILLING_WARNING_INTERVAL", DefaultWarningInterval),
			SuspensionInterval:   getEnvDuration("BILLING_SUSPENSION_INTERVAL", DefaultSuspendInterval),
			ProvisionInterval:    getEnvDuration("BILLING_PROVISION_INTERVAL", DefaultProvisionInterval),
			StartupDelay:         getEnvDuration("BILLING_STARTUP_DELAY", DefaultStartupDelay),
			DefaultItemID:        os.Getenv("BILLING_DEFAULT_ITEM_ID"),
			DefaultMonthlyAmount: amount,
			DefaultCurrency:      getEnv("BILLING_DEFAULT_CURRENCY", DefaultCurrency),
			InvoiceNotes:         os.Getenv("BILLING_INVOICE_NOTES"),
			InvoiceTerms:         getEnv("BILLING_INVOICE_TERMS", DefaultInvoiceTerms),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
// Missing billing provider credentials are fatal while the billing jobs are
// enabled, so a misconfigured deployment never silently skips suspension.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: PORT is required", ErrConfiguration)
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("%w: ADMIN_SECRET is required in production", ErrConfiguration)
	}

	b := c.Billing
	if b.SuspensionDays <= 0 {
		return fmt.Errorf("%w: BILLING_SUSPENSION_DAYS must be positive", ErrConfiguration)
	}
	if b.WarningWindowDays <= 0 {
		return fmt.Errorf("%w: BILLING_WARNING_WINDOW_DAYS must be positive", ErrConfiguration)
	}
	for _, d := range b.WarningDays {
		if d <= 0 || d >= b.SuspensionDays {
			return fmt.Errorf("%w: warning threshold %d must be between 1 and %d", ErrConfiguration, d, b.SuspensionDays-1)
		}
	}
	if b.DefaultMonthlyAmount.IsNegative() {
		return fmt.Errorf("%w: BILLING_DEFAULT_MONTHLY_AMOUNT must not be negative", ErrConfiguration)
	}

	if !b.JobsEnabled {
		return nil
	}

	z := c.Zoho
	if z.BaseURL == "" {
		return fmt.Errorf("%w: ZOHO_BASE_URL is required", ErrConfiguration)
	}
	if z.OrganizationID == "" {
		return fmt.Errorf("%w: ZOHO_ORGANIZATION_ID is required", ErrConfiguration)
	}
	if !z.HasCredentials() {
		return fmt.Errorf("%w: ZOHO_ACCESS_TOKEN or ZOHO_REFRESH_TOKEN with ZOHO_CLIENT_ID and ZOHO_CLIENT_SECRET is required", ErrConfiguration)
	}
	if b.DefaultItemID == "" {
		return fmt.Errorf("%w: BILLING_DEFAULT_ITEM_ID is required", ErrConfiguration)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvIntList(key string, defaultValue []int) ([]int, error) {
	value := os.Getenv(key)
	if value == "" {
		out := make([]int, len(defaultValue))
		copy(out, defaultValue)
		return out, nil
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not an integer", ErrConfiguration, key, part)
		}
		out = append(out, n)
	}
	return out, nil
}
