package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Env string

	// UDP listener
	UDPHost string
	UDPPort string

	// REST API
	APIPort string

	// Storage: DatabaseURL selects PostgreSQL, otherwise SQLite at DBPath.
	DatabaseURL string
	DBPath      string

	// Retention horizon in days, fractional values allowed.
	RetentionDays float64
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("ENV", "development"),
		UDPHost:       getEnv("UDP_HOST", "0.0.0.0"),
		UDPPort:       getEnv("UDP_PORT", "8888"),
		APIPort:       getEnv("API_PORT", "5000"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBPath:        getEnv("DB_PATH", "udpmon.db"),
		RetentionDays: getEnvFloat("RETENTION_DAYS", 1.0),
	}

	// In production, require an explicit storage location
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" && os.Getenv("DB_PATH") == "" {
			panic("DATABASE_URL or DB_PATH is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
