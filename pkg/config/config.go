package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the explicit configuration object built once at startup and
// injected into constructors. Nothing reads the environment at request
// time, which keeps handlers testable with fixture values.
type Config struct {
	Port        string
	DatabaseURL string

	JWTSecret     string
	JWTIssuer     string
	JWTTTLMinutes int

	// Intent-token protocol
	IntentSecret            string
	FingerprintSalt         string
	IntentTTLMinutes        int
	IntentRateMax           int
	IntentRateWindowMinutes int

	CORSOrigins string

	StripeSecretKey  string
	StripeSuccessURL string
	StripeCancelURL  string

	OpenRouterAPIKey   string
	OpenRouterBase     string
	OpenRouterModel    string
	OpenRouterAppTitle string
	OpenRouterReferer  string
}

// Load reads environment variables, optionally from a .env file if present.
func Load() Config {
	// Try to load .env if it exists; ignore error if file not found
	_ = godotenv.Load()

	return Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change"),
		JWTIssuer:     getEnv("JWT_ISSUER", "cvx-backend"),
		JWTTTLMinutes: getEnvInt("JWT_TTL_MINUTES", 60),

		IntentSecret:            os.Getenv("INTENT_SECRET"),
		FingerprintSalt:         getEnv("FINGERPRINT_SALT", "dev-salt-change"),
		IntentTTLMinutes:        getEnvInt("INTENT_TTL_MINUTES", 10),
		IntentRateMax:           getEnvInt("INTENT_RATE_MAX", 10),
		IntentRateWindowMinutes: getEnvInt("INTENT_RATE_WINDOW_MINUTES", 10),

		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		StripeSuccessURL: getEnv("STRIPE_SUCCESS_URL", "https://cvx.app/checkout/success"),
		StripeCancelURL:  getEnv("STRIPE_CANCEL_URL", "https://cvx.app/checkout/cancel"),

		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBase:     os.Getenv("OPENROUTER_BASE"),
		OpenRouterModel:    getEnv("OPENROUTER_MODEL", "qwen/qwen2.5-32b-instruct"),
		OpenRouterAppTitle: getEnv("OPENROUTER_APP_TITLE", "cvx"),
		OpenRouterReferer:  os.Getenv("OPENROUTER_REFERER"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
