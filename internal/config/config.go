// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// devSecret signs tokens when HMAC_SECRET is unset outside production.
const devSecret = "test_secret"

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :4000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; when empty the server runs on in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// HMACSecret signs session tokens. Required when APP_ENV=production.
	HMACSecret string `mapstructure:"HMAC_SECRET"`
	// SessionTTL is the default session lifetime (e.g. "10m").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// DeviceBinding rejects resubmissions from a device other than the first one seen.
	DeviceBinding bool `mapstructure:"DEVICE_BINDING"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// AllowedOrigins is a comma-separated CORS allow list. Localhost origins
	// are always allowed regardless of this list.
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	// ClientCheck enables the browser/OS header allow-list middleware.
	ClientCheck bool `mapstructure:"CLIENT_CHECK"`
	// AllowedBrowsers is the comma-separated browser allow list used when ClientCheck is on.
	AllowedBrowsers string `mapstructure:"ALLOWED_BROWSERS"`
	// AllowedOS is the comma-separated OS allow list used when ClientCheck is on.
	AllowedOS string `mapstructure:"ALLOWED_OS"`

	// RateLimitWindow is the fixed rate-limit window (e.g. "10s").
	RateLimitWindow string `mapstructure:"RATE_LIMIT_WINDOW"`
	// RateLimitMax is the number of requests allowed per client per window.
	RateLimitMax int `mapstructure:"RATE_LIMIT_MAX"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":4000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("HMAC_SECRET", "")
	v.SetDefault("SESSION_TTL", "10m")
	v.SetDefault("DEVICE_BINDING", true)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("CLIENT_CHECK", false)
	v.SetDefault("ALLOWED_BROWSERS", "Chrome,Firefox,Edge")
	v.SetDefault("ALLOWED_OS", "Windows,MacOS,Linux,Android,iOS")
	v.SetDefault("RATE_LIMIT_WINDOW", "10s")
	v.SetDefault("RATE_LIMIT_MAX", 50)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.HMACSecret == "" {
		if cfg.Env == "production" {
			return nil, errors.New("config: HMAC_SECRET must be set when APP_ENV=production")
		}
		cfg.HMACSecret = devSecret
	}

	if cfg.RateLimitMax <= 0 {
		return nil, errors.New("config: RATE_LIMIT_MAX must be positive")
	}

	return &cfg, nil
}

// SessionTTLDuration parses SessionTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// RateLimitWindowDuration parses RateLimitWindow as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) RateLimitWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.RateLimitWindow)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// AllowedOriginsList returns the configured CORS origins from the comma-separated config.
func (c *Config) AllowedOriginsList() []string {
	return splitList(c.AllowedOrigins)
}

// AllowedBrowsersList returns the browser allow list from the comma-separated config.
func (c *Config) AllowedBrowsersList() []string {
	return splitList(c.AllowedBrowsers)
}

// AllowedOSList returns the OS allow list from the comma-separated config.
func (c *Config) AllowedOSList() []string {
	return splitList(c.AllowedOS)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
