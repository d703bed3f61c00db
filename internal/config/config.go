package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port        string
	Environment string
	LogLevel    string

	// Database configuration
	DBType               string // mysql, postgres, sqlite, sqlserver, etc.
	DBHost               string
	DBPort               string
	DBDatabase           string
	DBAppUser            string // engine pool, read-write
	DBAppPassword        string
	DBAppConnectionLimit int
	DBUser               string // reporting pool, read-only projections
	DBPassword           string
	DBConnectionLimit    int

	// Authorization configuration
	AuthMode      string // authorizer or header
	AuthzURL      string
	AuthzClientID string

	// Department registry
	DepartmentsFile string
	Departments     string

	// Notifications
	NATSURL           string
	NATSSubjectPrefix string
	NotifyBuffer      int

	// Certificates
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	CertQueue         string
	WorkerConcurrency int
	S3Endpoint        string
	S3AccessKey       string
	S3SecretKey       string
	S3UseSSL          bool
	S3Region          string
	CertBucket        string
	CertURLTTL        time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "3000"),
		Environment:          getEnv("ENVIRONMENT", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DBType:               getEnv("DB_TYPE", "mysql"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "3306"),
		DBDatabase:           getEnv("DB_DATABASE", ""),
		DBAppUser:            getEnv("DB_APP_USER", ""),
		DBAppPassword:        getEnv("DB_APP_PASSWORD", ""),
		DBAppConnectionLimit: getEnvAsInt("DB_APP_CONNECTION_LIMIT", 10),
		DBUser:               getEnv("DB_USER", ""),
		DBPassword:           getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:    getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		AuthMode:             strings.ToLower(getEnv("AUTH_MODE", "authorizer")),
		AuthzURL:             getEnv("AUTHZ_URL", ""),
		AuthzClientID:        getEnv("AUTHZ_CLIENT_ID", ""),
		DepartmentsFile:      getEnv("DEPARTMENTS_FILE", ""),
		Departments:          getEnv("DEPARTMENTS", ""),
		NATSURL:              getEnv("NATS_URL", ""),
		NATSSubjectPrefix:    getEnv("NATS_SUBJECT_PREFIX", "nodues.events"),
		NotifyBuffer:         getEnvAsInt("NOTIFY_BUFFER", 64),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvAsInt("REDIS_DB", 0),
		CertQueue:            getEnv("CERT_QUEUE", "certificates"),
		WorkerConcurrency:    getEnvAsInt("WORKER_CONCURRENCY", 4),
		S3Endpoint:           getEnv("S3_ENDPOINT", ""),
		S3AccessKey:          getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:          getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:             getEnvAsBool("S3_USE_SSL", false),
		S3Region:             getEnv("S3_REGION", "us-east-1"),
		CertBucket:           getEnv("CERT_BUCKET", "nodues-certificates"),
		CertURLTTL:           getEnvAsDuration("CERT_URL_TTL", 15*time.Minute),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if !cfg.IsSQLite() && cfg.DBAppUser == "" {
		return nil, fmt.Errorf("DB_APP_USER is required")
	}
	switch cfg.AuthMode {
	case "authorizer":
		if cfg.AuthzURL == "" {
			return nil, fmt.Errorf("AUTHZ_URL is required")
		}
		if cfg.AuthzClientID == "" {
			return nil, fmt.Errorf("AUTHZ_CLIENT_ID is required")
		}
	case "header":
	default:
		return nil, fmt.Errorf("AUTH_MODE must be authorizer or header, got %q", cfg.AuthMode)
	}

	// The reporting pool falls back to the engine credentials
	if cfg.DBUser == "" {
		cfg.DBUser = cfg.DBAppUser
		cfg.DBPassword = cfg.DBAppPassword
	}

	return cfg, nil
}

// IsSQLite reports whether the configured database is file based.
func (c *Config) IsSQLite() bool {
	return c.DBType == "sqlite" || c.DBType == "sqlite3"
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
