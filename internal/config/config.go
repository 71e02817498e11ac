// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all service configuration.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Auth     AuthConfig
	Workflow WorkflowConfig
}

// ServiceConfig identifies the service in logs.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// NATSConfig configures the real-time notification transport.
// An empty URL disables real-time push; notifications are still persisted.
type NATSConfig struct {
	URL string
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret string
}

// WorkflowConfig holds the business parameters of the approval workflow.
type WorkflowConfig struct {
	// AdminApprovalThreshold is the order total (CNY) above which a purchase
	// order from a temporary supplier requires admin approval. Strictly
	// greater-than: an order exactly at the threshold does not require it.
	AdminApprovalThreshold decimal.Decimal
	// CascadeConcurrency bounds the per-document fan-out inside cascades.
	CascadeConcurrency int
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	threshold, err := decimal.NewFromString(getEnv("ADMIN_APPROVAL_THRESHOLD", "100000"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_APPROVAL_THRESHOLD: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "workflow-core"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Server: ServerConfig{
			Port:            getEnvInt("HTTP_PORT", 8086),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "erp_workflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Workflow: WorkflowConfig{
			AdminApprovalThreshold: threshold,
			CascadeConcurrency:     getEnvInt("CASCADE_CONCURRENCY", 4),
		},
	}

	if cfg.Workflow.CascadeConcurrency < 1 {
		cfg.Workflow.CascadeConcurrency = 1
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration or returns a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
