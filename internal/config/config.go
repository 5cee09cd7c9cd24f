package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP
	Port string

	// Local storage
	DBPath         string
	LegacyDataPath string

	// Cloud sync (optional; local-only when unset)
	RemoteDatabaseURL string
	AccountID         string

	// Logging
	LogLevel string
}

// Load reads configuration from the environment, with .env support for
// development. Nothing here is required: with an empty environment the app
// runs local-only on defaults.
func Load() Config {
	// Non-fatal if missing
	_ = godotenv.Load()

	return Config{
		Port:              getEnvDefault("SETTLEUP_PORT", "8080"),
		DBPath:            getEnvDefault("SETTLEUP_DB_PATH", "settleup.db"),
		LegacyDataPath:    getEnvDefault("SETTLEUP_LEGACY_DATA_PATH", "settleup-data.json"),
		RemoteDatabaseURL: os.Getenv("SETTLEUP_REMOTE_DATABASE_URL"),
		AccountID:         os.Getenv("SETTLEUP_ACCOUNT_ID"),
		LogLevel:          getEnvDefault("SETTLEUP_LOG_LEVEL", "info"),
	}
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
