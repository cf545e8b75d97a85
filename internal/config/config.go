package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds gateway configuration, loaded once at startup and immutable
// thereafter.
type Config struct {
	ServerPort      string
	FrontendURL     string
	RedisURL        string
	PolicyFile      string
	AdminToken      string
	JWTSecret       string
	GlobalRate      int
	SweepInterval   time.Duration
	EnableHSTS      bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// Load loads configuration from environment variables. REDIS_URL is
// optional: when empty the gateway runs on the in-memory quota store.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		RedisURL:        getEnv("REDIS_URL", ""),
		PolicyFile:      getEnv("POLICY_FILE", ""),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		GlobalRate:      getEnvInt("GLOBAL_RATE", 0),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", time.Minute),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.AdminToken == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN is required (the block/unblock API must not be open)")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required for bearer token verification")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
