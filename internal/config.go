package internal

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the process configuration, loaded from a .env file when
// present, otherwise from OS environment variables.
type Config struct {
	DataDir        string
	Port           string
	LogLevel       string
	CacheTTL       time.Duration
	ListingBaseURL string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Unable to load .env file: %s", err.Error())
	}

	ttlMinutes := 5
	if raw := os.Getenv("CACHE_TTL_MINUTES"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			logrus.Warnf("Invalid CACHE_TTL_MINUTES %q, using default", raw)
		} else {
			ttlMinutes = parsed
		}
	}

	return &Config{
		DataDir:        getEnv("DATA_DIR", "./data"),
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CacheTTL:       time.Duration(ttlMinutes) * time.Minute,
		ListingBaseURL: getEnv("LISTING_BASE_URL", "http://localhost:8080"),
	}
}

func getEnv(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
