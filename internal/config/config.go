// Package config defines the authd configuration surface: a YAML file with
// ${VAR} expansion, overridable through AUTHD_-prefixed environment
// variables bound by the CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DevJWTSecret is the development-only fallback signing secret. Startup
// logs a loud warning when it is in effect; production deployments must set
// auth.jwt_secret or AUTHD_AUTH_JWT_SECRET.
const DevJWTSecret = "authd-dev-secret-change-me"

// Config is the top-level authd configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Store     StoreConfig     `yaml:"store"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the persistent HTTP server.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	CORSOrigins     []string `yaml:"cors_origins"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

// AuthConfig controls tokens and the administrator allow-list.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  string `yaml:"token_ttl"`
	// AdminEmails seeds the administrator role at bootstrap. It is never
	// consulted per-request; authorization reads the role attribute.
	AdminEmails []string `yaml:"admin_emails"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite (default), postgres, mysql
	DSN    string `yaml:"dsn"`
}

// RateLimitConfig controls the per-IP request limiter on the persistent
// server.
type RateLimitConfig struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: "30s",
		},
		Auth: AuthConfig{
			TokenTTL: "24h",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   "15m",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML configuration file over the defaults. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before
// parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// TokenTTL parses the configured token lifetime, falling back to 24h.
func (c *Config) TokenTTL() time.Duration {
	return parseDuration(c.Auth.TokenTTL, 24*time.Hour)
}

// ShutdownTimeout parses the configured drain window, falling back to 30s.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 30*time.Second)
}

// RateLimitWindow parses the limiter window, falling back to 15m.
func (c *Config) RateLimitWindow() time.Duration {
	return parseDuration(c.RateLimit.Window, 15*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
