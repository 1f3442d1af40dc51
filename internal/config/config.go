// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir              string   // Base directory for all databases (always absolute)
	Port                 int      // HTTP listen port
	LogLevel             string   // debug, info, warn, error
	DevMode              bool     // Pretty logging, no response compression
	QuoteAPIURL          string   // Base URL of the market-data quote source
	PriceRefreshSchedule string   // Cron spec for the price refresh job
	BaselineSymbols      []string // Symbols refreshed even when not held
	SeedDemo             bool     // Seed a demo ledger when the store is empty
}

// defaultBaselineSymbols are the "popular" assets the dashboard always shows
// quotes for, whether or not the user holds them.
var defaultBaselineSymbols = []string{"bitcoin", "ethereum", "solana", "cardano", "dogecoin"}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FOLIO_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:              absDataDir,
		Port:                 getEnvAsInt("FOLIO_PORT", 8090),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		QuoteAPIURL:          getEnv("QUOTE_API_URL", "https://api.coingecko.com/api/v3"),
		PriceRefreshSchedule: getEnv("PRICE_REFRESH_INTERVAL", "@every 30s"),
		BaselineSymbols:      getEnvAsList("BASELINE_SYMBOLS", defaultBaselineSymbols),
		SeedDemo:             getEnvAsBool("SEED_DEMO", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.QuoteAPIURL == "" {
		return fmt.Errorf("quote API URL must not be empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
