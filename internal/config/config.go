// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no config path is given. It may be absent.
const DefaultEnvFile = ".env"

// Config holds every setting the server reads at startup.
type Config struct {
	Port      int
	DBPath    string
	UploadDir string

	// SessionSecret signs session tokens. Empty means a random secret is
	// generated per process, so restarting the server logs everyone out.
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	LogLevel  string
	LogFormat string

	// RedisAddr, when set, moves sessions into Redis.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MinioEndpoint, when set, stores images in a MinIO bucket instead of
	// UploadDir.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// SeedUsername and SeedPassword, when both set, create that account at
	// startup if it does not exist.
	SeedUsername string
	SeedPassword string
}

// Load reads path (a .env file) into the process environment without
// overriding variables that are already set, then builds a Config from the
// environment. An empty path tries DefaultEnvFile and ignores its absence.
func Load(path string) (*Config, error) {
	if path == "" {
		if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", DefaultEnvFile, err)
		}
	} else if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := &Config{
		DBPath:         getEnv("DB_PATH", "data/travel.db"),
		UploadDir:      getEnv("UPLOAD_DIR", "static/uploads"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "trip-images"),
		SeedUsername:   os.Getenv("SEED_USERNAME"),
		SeedPassword:   os.Getenv("SEED_PASSWORD"),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(getEnv("PORT", "8080")); err != nil {
		return nil, fmt.Errorf("config: invalid PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: PORT %d out of range", cfg.Port)
	}
	if cfg.SessionTTL, err = time.ParseDuration(getEnv("SESSION_TTL", "720h")); err != nil {
		return nil, fmt.Errorf("config: invalid SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("config: SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.CookieSecure, err = strconv.ParseBool(getEnv("COOKIE_SECURE", "false")); err != nil {
		return nil, fmt.Errorf("config: invalid COOKIE_SECURE: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("config: invalid REDIS_DB: %w", err)
	}
	if cfg.MinioUseSSL, err = strconv.ParseBool(getEnv("MINIO_USE_SSL", "false")); err != nil {
		return nil, fmt.Errorf("config: invalid MINIO_USE_SSL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultValue
}
