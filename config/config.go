package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	JWTKey    string
	SaltRound int

	EmailSender string
	Password    string // SMTP app password

	// Payment gateway (hosted checkout)
	PayGatewayURL    string // base URL of the gateway API
	PayGatewayKey    string // API key for session creation
	PayWebhookSecret string // HMAC secret for webhook signatures
	CheckoutSuccess  string // redirect after successful payment
	CheckoutCancel   string // redirect after cancelled payment
	CheckoutCurrency string
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:      getEnv("PORT", "3000"),
		JWTKey:    getEnv("JWT_SECRET_KEY", "defaultSecret"),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		EmailSender: getEnv("EMAIL_SENDER", "defaultSecret"),
		Password:    getEnv("PASSWORD", "defaultSecret"),

		PayGatewayURL:    getEnv("PAY_GATEWAY_URL", ""),
		PayGatewayKey:    getEnv("PAY_GATEWAY_KEY", ""),
		PayWebhookSecret: getEnv("PAY_WEBHOOK_SECRET", ""),
		CheckoutSuccess:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/payment/success"),
		CheckoutCancel:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/payment/cancel"),
		CheckoutCurrency: getEnv("CHECKOUT_CURRENCY", "USD"),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.PayGatewayURL == "" {
		log.Println("Warning: PAY_GATEWAY_URL not set. Paid checkout will be unavailable.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}
