// Package config loads the environment-driven knobs that govern an
// instrumented process: where the dashboard collector lives, how large the
// backtrace catalog is allowed to grow, and whether the logger runs in
// debug mode.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for one instrumented process.
type Config struct {
	// Dashboard is the collector address from MOIRE_DASHBOARD. Empty
	// disables the push loop.
	Dashboard string

	// MaxBacktraceRecords bounds the interned backtrace catalog; 0 means
	// unbounded.
	MaxBacktraceRecords int

	// Debug selects a human-readable, debug-level logger instead of the
	// default production JSON logger.
	Debug bool
}

// Load reads configuration from the environment, first loading a .env file
// if one is present.
func Load() Config {
	loadEnvironmentConfig()

	return Config{
		Dashboard:           getEnv("MOIRE_DASHBOARD", ""),
		MaxBacktraceRecords: getEnvInt("MOIRE_MAX_BACKTRACE_RECORDS", 0),
		Debug:               getEnvBool("MOIRE_LOG_DEBUG", false),
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
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || v == "true"
	}
	return def
}

// loadEnvironmentConfig loads a .env file if present, falling back silently
// to whatever is already in the process environment.
func loadEnvironmentConfig() {
	if err := godotenv.Load(); err == nil {
		log.Printf("moire: loaded .env file")
	}
}
