package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Phorest provider configuration
	PhorestBaseURL               string
	PhorestUsername              string
	PhorestPassword              string
	PhorestBusinessID            string
	PhorestDefaultBranchID       string
	PhorestTimeout               time.Duration
	PhorestQualifiedStaffEnabled bool

	// Availability and booking behaviour
	SlotFetchTimeout        time.Duration
	SlotFetchConcurrency    int
	BookingTimeout          time.Duration
	BusinessTimezone        string
	DefaultSlotDurationMins int
	TestAccountMarkers      []string

	// Email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	StaffNotifyEmail  string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Stripe checkout
	StripeSecretKey  string
	StripeSuccessURL string
	StripeCancelURL  string
	StripeDryRun     bool
	Currency         string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	TrustProxyHeaders  bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		PhorestBaseURL:               getEnv("PHOREST_BASE_URL", "https://api-gateway-eu.phorest.com/third-party-api-server/api"),
		PhorestUsername:              getEnv("PHOREST_USERNAME", ""),
		PhorestPassword:              getEnv("PHOREST_PASSWORD", ""),
		PhorestBusinessID:            getEnv("PHOREST_BUSINESS_ID", ""),
		PhorestDefaultBranchID:       getEnv("PHOREST_DEFAULT_BRANCH_ID", ""),
		PhorestTimeout:               getEnvAsDuration("PHOREST_TIMEOUT", 20*time.Second),
		PhorestQualifiedStaffEnabled: getEnvAsBool("PHOREST_QUALIFIED_STAFF_ENABLED", true),

		SlotFetchTimeout:        getEnvAsDuration("SLOT_FETCH_TIMEOUT", 8*time.Second),
		SlotFetchConcurrency:    getEnvAsInt("SLOT_FETCH_CONCURRENCY", 8),
		BookingTimeout:          getEnvAsDuration("BOOKING_TIMEOUT", 15*time.Second),
		BusinessTimezone:        getEnv("BUSINESS_TIMEZONE", "Australia/Perth"),
		DefaultSlotDurationMins: getEnvAsInt("DEFAULT_SLOT_DURATION_MINS", 60),
		TestAccountMarkers:      getEnvAsList("TEST_ACCOUNT_MARKERS", []string{"test", "led"}),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Skin Clinic"),
		StaffNotifyEmail:  getEnv("STAFF_NOTIFY_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-southeast-2"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		StripeSecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
		StripeSuccessURL: getEnv("STRIPE_SUCCESS_URL", ""),
		StripeCancelURL:  getEnv("STRIPE_CANCEL_URL", ""),
		StripeDryRun:     getEnvAsBool("STRIPE_DRY_RUN", false),
		Currency:         strings.ToLower(getEnv("CURRENCY", "aud")),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		TrustProxyHeaders:  getEnvAsBool("TRUST_PROXY_HEADERS", false),
	}
}

// IsProduction reports whether technical error details must be hidden from callers.
func (c *Config) IsProduction() bool {
	if c == nil {
		return false
	}
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "production" || env == "prod"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
