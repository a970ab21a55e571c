package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Booking  BookingConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
	Redis    RedisConfig
	CORS     CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// BookingConfig holds the booking backend client configuration
type BookingConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PaymentConfig holds the payment provider configuration. ReturnURL and
// CancelURL are both passed to the provider and matched as substrings
// against embedded-browser navigation events.
type PaymentConfig struct {
	BaseURL   string
	ReturnURL string
	CancelURL string
	Timeout   time.Duration
}

// CheckoutConfig holds orchestrator tuning
type CheckoutConfig struct {
	StepTimeout time.Duration // per network call inside a state transition
}

// RedisConfig holds the seat-template cache configuration. An empty
// address disables the cache.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	TemplateTTL time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Booking: BookingConfig{
			BaseURL: getEnv("BOOKING_API_BASE_URL", ""),
			Timeout: time.Duration(getEnvAsInt("BOOKING_API_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Payment: PaymentConfig{
			BaseURL:   getEnv("PAYMENT_GATEWAY_BASE_URL", ""),
			ReturnURL: getEnv("PAYMENT_RETURN_URL", "https://checkout.smartrail.app/payment/return"),
			CancelURL: getEnv("PAYMENT_CANCEL_URL", "https://checkout.smartrail.app/payment/cancel"),
			Timeout:   time.Duration(getEnvAsInt("PAYMENT_GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Checkout: CheckoutConfig{
			StepTimeout: time.Duration(getEnvAsInt("CHECKOUT_STEP_TIMEOUT_SECONDS", 20)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			TemplateTTL: time.Duration(getEnvAsInt("TEMPLATE_CACHE_TTL_SECONDS", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Booking.BaseURL == "" {
		return fmt.Errorf("BOOKING_API_BASE_URL is required")
	}
	if c.Payment.BaseURL == "" {
		return fmt.Errorf("PAYMENT_GATEWAY_BASE_URL is required")
	}
	if c.Payment.ReturnURL == c.Payment.CancelURL {
		return fmt.Errorf("PAYMENT_RETURN_URL and PAYMENT_CANCEL_URL must differ")
	}
	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
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

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
