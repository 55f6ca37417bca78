package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Upload   UploadConfig
	App      AppConfig
}

type ServerConfig struct {
	Port          string
	PublicBaseURL string
	ClientDist    string
}

type DatabaseConfig struct {
	DSN      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	// Addr empty disables the site lookup cache.
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret        string
	TokenTTL         time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
	AdminUsername    string
	AdminPassword    string
}

type UploadConfig struct {
	StorageRoot     string
	MaxUploadBytes  int64
	MaxExtractBytes int64
	TempSweepEvery  time.Duration
	TempMaxAge      time.Duration
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	maxUploadMB := getEnvAsInt("UPLOAD_MAX_SIZE_MB", 20)
	maxExtractMB := getEnvAsInt("UPLOAD_MAX_EXTRACT_MB", maxUploadMB*5)

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "4000"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
			ClientDist:    getEnv("CLIENT_DIST", "client/dist"),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: time.Duration(getEnvAsInt("SITE_CACHE_TTL_SECONDS", 30)) * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", "supersecretkey"),
			TokenTTL:         time.Duration(getEnvAsInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
			LockoutThreshold: getEnvAsInt("LOCKOUT_THRESHOLD", 3),
			LockoutDuration:  time.Duration(getEnvAsInt("LOCKOUT_MINUTES", 10)) * time.Minute,
			AdminUsername:    getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		},
		Upload: UploadConfig{
			StorageRoot:     getEnv("STORAGE_ROOT", "uploads"),
			MaxUploadBytes:  int64(maxUploadMB) * 1024 * 1024,
			MaxExtractBytes: int64(maxExtractMB) * 1024 * 1024,
			TempSweepEvery:  time.Duration(getEnvAsInt("TEMP_SWEEP_MINUTES", 30)) * time.Minute,
			TempMaxAge:      time.Duration(getEnvAsInt("TEMP_MAX_AGE_MINUTES", 120)) * time.Minute,
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	if c.Upload.StorageRoot == "" {
		return fmt.Errorf("STORAGE_ROOT is required")
	}

	if c.Upload.MaxExtractBytes < c.Upload.MaxUploadBytes {
		return fmt.Errorf("UPLOAD_MAX_EXTRACT_MB must be >= UPLOAD_MAX_SIZE_MB")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}
