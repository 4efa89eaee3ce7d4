package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/godilite/feedback-server/pkg/database"
	"go.uber.org/zap"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv                string
	DBPath                string
	DBDriver              string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CacheEnabled          bool
	CacheTTL              time.Duration
	GRPCPort              int
	GRPCReflectionEnabled bool
	GRPCLoggingEnabled    bool
	JWTSecret             string
	TokenTTL              time.Duration
	DefaultRound          string
}

// LoadFromEnv loads configuration from environment variables. Malformed
// values fall back to their defaults.
func LoadFromEnv() *Config {
	return &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		DBPath:                getEnv("DB_PATH", "./data/feedback.db"),
		DBDriver:              database.NormalizeDriver(getEnv("DB_DRIVER", "sqlite3")),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getInt("REDIS_DB", 0),
		CacheEnabled:          getBool("CACHE_ENABLED", true),
		CacheTTL:              getDuration("CACHE_TTL", 10*time.Minute),
		GRPCPort:              getInt("GRPC_PORT", 50051),
		GRPCReflectionEnabled: getBool("GRPC_REFLECTION_ENABLED", false),
		GRPCLoggingEnabled:    getBool("GRPC_LOGGING_ENABLED", true),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		TokenTTL:              getDuration("JWT_TTL", 8*time.Hour),
		DefaultRound:          getEnv("DEFAULT_ROUND", "1"),
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.DBDriver != "sqlite3" && c.DBDriver != "pgx" {
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	return errors.Join(errs...)
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
