package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Issuer name stamped into TOTP enrolment URLs

	StoreDriver   string        // Store driver (sqlite, memory) (default: sqlite)
	DatabaseFile  string        // Path to SQLite database file (default: ./sso.db)
	MasterKeyFile string        // Path to master key file for the at-rest cipher
	CodeTTL       time.Duration // Authorization code lifetime (default: 5m)
	TokenTTL      time.Duration // Access token lifetime (default: 1h)
	SessionTTL    time.Duration // Established session lifetime (default: 8h)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-ticket sweep interval (default: 15m)
}

func LoadConfig() Config {
	return Config{
		Issuer:               getEnvOrDefault("SSO_ISSUER", "ssokit"),
		StoreDriver:          getEnvOrDefault("SSO_STORE_DRIVER", "sqlite"),
		DatabaseFile:         getEnvOrDefault("SSO_DATABASE_FILE", "sso.db"),
		MasterKeyFile:        os.Getenv("SSO_MASTER_KEY_FILE"),
		CodeTTL:              getEnvDurationOrDefault("SSO_CODE_TTL", 5*time.Minute),
		TokenTTL:             getEnvDurationOrDefault("SSO_TOKEN_TTL", time.Hour),
		SessionTTL:           getEnvDurationOrDefault("SSO_SESSION_TTL", 8*time.Hour),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 15*time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
