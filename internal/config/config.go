// Package config provides environment-driven configuration for scoutlane.
//
// Configuration is read exactly once at process start. Components receive
// the resulting immutable Config (or the fields they need) by injection and
// never consult process environment directly.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Environment names accepted in ENVIRONMENT.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL    Secret
	Port           string
	ListenHost     string
	CORSOrigins    []string
	LogLevel       string
	Environment    string
	DisableCSRF    bool
	DevAuthEnabled bool
	DevAuthSecret  Secret
	JWKSURL        string
	TokenIssuer    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    Secret(envOrDefault("DATABASE_URL", "")),
		Port:           envOrDefault("PORT", "3030"),
		ListenHost:     envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		Environment:    envOrDefault("ENVIRONMENT", EnvDevelopment),
		DisableCSRF:    envOrDefault("DISABLE_CSRF", "false") == "true",
		DevAuthEnabled: envOrDefault("DEV_AUTH_ENABLED", "false") == "true",
		DevAuthSecret:  Secret(envOrDefault("DEV_AUTH_SECRET", "")),
		JWKSURL:        envOrDefault("JWKS_URL", ""),
		TokenIssuer:    envOrDefault("TOKEN_ISSUER", ""),
	}

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3000")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// Production reports whether the process runs with production hardening.
func (c *Config) Production() bool {
	return c.Environment == EnvProduction
}

func (c *Config) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateEnvironment(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	return c.validateIdentity()
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if dbHost != "localhost" && dbHost != "127.0.0.1" && dbHost != "::1" {
		sslmode := dbURL.Query().Get("sslmode")
		if sslmode == "disable" {
			return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
		}
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	return nil
}

func (c *Config) validateEnvironment() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging, or production, got %q", c.Environment)
	}

	// Both switches weaken a request-security guarantee. They exist for
	// local development and must never reach production.
	if c.Production() && c.DisableCSRF {
		return fmt.Errorf("DISABLE_CSRF is not allowed when ENVIRONMENT is production")
	}

	if c.Production() && c.DevAuthEnabled {
		return fmt.Errorf("DEV_AUTH_ENABLED is not allowed when ENVIRONMENT is production")
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateIdentity() error {
	if c.DevAuthEnabled {
		if len(c.DevAuthSecret.Value()) < 32 {
			return fmt.Errorf("DEV_AUTH_SECRET must be at least 32 characters when DEV_AUTH_ENABLED is true")
		}

		return nil
	}

	if c.JWKSURL == "" {
		return fmt.Errorf("JWKS_URL is required unless DEV_AUTH_ENABLED is true")
	}

	jwksURL, err := url.ParseRequestURI(c.JWKSURL)
	if err != nil {
		return fmt.Errorf("JWKS_URL is not a valid URL: %w", err)
	}

	if jwksURL.Scheme != "https" && !isLocalhost(c.JWKSURL) {
		return fmt.Errorf("JWKS_URL must use HTTPS for non-localhost hosts")
	}

	return nil
}

// isLocalhost returns true if the given address points to a loopback address.
func isLocalhost(addr string) bool {
	u, err := url.Parse(addr)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
