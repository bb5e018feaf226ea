package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	RedisURL    string
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	// Cache and rate limiting.
	CacheTTL          time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Downstream analysis provider.
	GoogleAPIKey      string
	GeminiModel       string
	GeminiTemperature float64
	GeminiMaxTokens   int

	// Splunk search endpoint.
	SplunkURL       string
	SplunkUsername  string
	SplunkPassword  string
	SplunkVerifyTLS bool
}

func Load() (*Config, error) {
	godotenv.Load()

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "secret"),
		TokenTTL:  time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,

		CacheTTL:          time.Duration(getEnvInt("CACHE_TTL", 3600)) * time.Second,
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(getEnvInt("RATE_LIMIT_WINDOW", 3600)) * time.Second,

		GoogleAPIKey:      getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTemperature: getEnvFloat("GEMINI_TEMPERATURE", 0.1),
		GeminiMaxTokens:   getEnvInt("GEMINI_MAX_TOKENS", 8192),

		SplunkURL:       getEnv("SPLUNK_URL", "https://localhost:8089"),
		SplunkUsername:  getEnv("SPLUNK_USERNAME", "admin"),
		SplunkPassword:  getEnv("SPLUNK_PASSWORD", "changeme"),
		SplunkVerifyTLS: getEnvBool("SPLUNK_VERIFY_TLS", false),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
