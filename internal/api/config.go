// Package api provides the read-only monitoring HTTP surface.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kindred-labs/genealogy-enrich/internal/api/middleware"
	"github.com/kindred-labs/genealogy-enrich/internal/config"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = 8080
	// MaxPort is the maximum valid port number.
	MaxPort = 65535
	// DefaultHost is the default server host.
	DefaultHost = "0.0.0.0"
	// DefaultTimeout is the default timeout for HTTP operations.
	DefaultTimeout = 30 * time.Second
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = slog.LevelInfo
	// DefaultCORSMaxAge is the default CORS max age (24 hours).
	DefaultCORSMaxAge = 86400
)

// Static validation errors.
var (
	ErrInvalidPort            = errors.New("invalid port")
	ErrEmptyHost              = errors.New("host cannot be empty")
	ErrInvalidReadTimeout     = errors.New("read timeout must be positive")
	ErrInvalidWriteTimeout    = errors.New("write timeout must be positive")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               int
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           slog.Level
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int
	APIKey             string
	RateLimiter        middleware.RateLimiter
}

// LoadServerConfig loads server configuration from environment variables with sensible defaults.
func LoadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Port:               DefaultPort,
		Host:               DefaultHost,
		ReadTimeout:        DefaultTimeout,
		WriteTimeout:       DefaultTimeout,
		ShutdownTimeout:    DefaultTimeout,
		LogLevel:           DefaultLogLevel,
		CORSAllowedOrigins: []string{"*"}, // Development default - should be restricted in production
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Correlation-ID", "X-API-Key"},
		CORSMaxAge:         DefaultCORSMaxAge,
	}

	// Load configuration from environment variables
	loadServerAddress(&cfg)
	loadTimeouts(&cfg)
	loadLogLevel(&cfg)
	loadCORSConfig(&cfg)

	return cfg
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToCORSConfig converts ServerConfig CORS fields to middleware.CORSConfigProvider.
func (c ServerConfig) ToCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: c.CORSAllowedMethods,
		AllowedHeaders: c.CORSAllowedHeaders,
		MaxAge:         c.CORSMaxAge,
	}
}

// CORSConfig holds CORS configuration options.
// This is defined here to keep CORS configuration centralized.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// GetAllowedOrigins returns the allowed origins for CORS.
func (c CORSConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

// GetAllowedMethods returns the allowed methods for CORS.
func (c CORSConfig) GetAllowedMethods() []string {
	return c.AllowedMethods
}

// GetAllowedHeaders returns the allowed headers for CORS.
func (c CORSConfig) GetAllowedHeaders() []string {
	return c.AllowedHeaders
}

// GetMaxAge returns the max age for CORS preflight cache.
func (c CORSConfig) GetMaxAge() int {
	return c.MaxAge
}

// Validate validates the server configuration.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > MaxPort {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, MaxPort)
	}

	if c.Host == "" {
		return ErrEmptyHost
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	return nil
}

// loadServerAddress loads server address configuration from environment variables.
func loadServerAddress(cfg *ServerConfig) {
	if port := config.GetEnvInt("GENEALOGY_ENRICH_PORT", cfg.Port); port > 0 && port <= MaxPort {
		cfg.Port = port
	}

	cfg.Host = config.GetEnvStr("GENEALOGY_ENRICH_HOST", cfg.Host)
}

// loadTimeouts loads timeout configuration from environment variables.
func loadTimeouts(cfg *ServerConfig) {
	cfg.ReadTimeout = config.GetEnvDuration("GENEALOGY_ENRICH_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = config.GetEnvDuration("GENEALOGY_ENRICH_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.ShutdownTimeout = config.GetEnvDuration("GENEALOGY_ENRICH_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
}

// loadLogLevel loads log level configuration from environment variables.
func loadLogLevel(cfg *ServerConfig) {
	cfg.LogLevel = config.GetEnvLogLevel("GENEALOGY_ENRICH_LOG_LEVEL", cfg.LogLevel)
}

// loadCORSConfig loads CORS configuration from environment variables.
func loadCORSConfig(cfg *ServerConfig) {
	if originsStr := os.Getenv("GENEALOGY_ENRICH_CORS_ALLOWED_ORIGINS"); originsStr != "" {
		cfg.CORSAllowedOrigins = config.ParseCommaSeparatedList(originsStr)
	}

	if methodsStr := os.Getenv("GENEALOGY_ENRICH_CORS_ALLOWED_METHODS"); methodsStr != "" {
		cfg.CORSAllowedMethods = config.ParseCommaSeparatedList(methodsStr)
	}

	if headersStr := os.Getenv("GENEALOGY_ENRICH_CORS_ALLOWED_HEADERS"); headersStr != "" {
		cfg.CORSAllowedHeaders = config.ParseCommaSeparatedList(headersStr)
	}

	if maxAge := config.GetEnvInt("GENEALOGY_ENRICH_CORS_MAX_AGE", cfg.CORSMaxAge); maxAge >= 0 {
		cfg.CORSMaxAge = maxAge
	}
}
