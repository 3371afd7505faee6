package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"storytime-api/internal/domain"
)

const defaultWebhookDedupTTL = 72 * time.Hour

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort          string
	LogLevel            string
	SupabaseURL         string
	SupabaseKey         string
	SupabaseServiceKey  string
	SupabaseJWTSecret   string
	StripeSecretKey     string
	StripeWebhookSecret string
	FrontendURL         string
	AllowedOrigins      []string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	WebhookDedupTTL     time.Duration
	AdminSecret         string
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	frontendURL := strings.TrimRight(getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"), "/")

	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:          getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		SupabaseURL:         getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:         getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey:  getEnvOrDefault("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:   getEnvOrDefault("SUPABASE_JWT_SECRET", ""),
		StripeSecretKey:     getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnvOrDefault("STRIPE_WEBHOOK_SECRET", ""),
		FrontendURL:         frontendURL,
		AllowedOrigins:      getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{frontendURL}),
		RedisAddr:           getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword:       getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:             getEnvIntOrDefault("REDIS_DB", 0),
		WebhookDedupTTL:     getEnvDurationOrDefault("WEBHOOK_DEDUP_TTL", defaultWebhookDedupTTL),
		AdminSecret:         getEnvOrDefault("ADMIN_API_SECRET", ""),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetSupabaseServiceKey returns the service-role key used for webhook writes.
func (c *AppConfig) GetSupabaseServiceKey() string {
	return c.SupabaseServiceKey
}

// GetSupabaseJWTSecret returns the project JWT secret. Empty disables local verification.
func (c *AppConfig) GetSupabaseJWTSecret() string {
	return c.SupabaseJWTSecret
}

func (c *AppConfig) GetStripeSecretKey() string {
	return c.StripeSecretKey
}

func (c *AppConfig) GetStripeWebhookSecret() string {
	return c.StripeWebhookSecret
}

func (c *AppConfig) GetFrontendURL() string {
	return c.FrontendURL
}

func (c *AppConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

func (c *AppConfig) GetRedisAddr() string {
	return c.RedisAddr
}

func (c *AppConfig) GetRedisPassword() string {
	return c.RedisPassword
}

func (c *AppConfig) GetRedisDB() int {
	return c.RedisDB
}

func (c *AppConfig) GetWebhookDedupTTL() time.Duration {
	return c.WebhookDedupTTL
}

// GetAdminSecret returns the X-Admin-Secret value. Empty disables admin routes.
func (c *AppConfig) GetAdminSecret() string {
	return c.AdminSecret
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma-separated value, dropping blanks.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
