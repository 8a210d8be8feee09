// Package config loads server configuration from an optional YAML file and
// environment variable overrides, applying sanitized defaults for anything
// left unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RateLimitConfig bounds how many messages a single chat connection may send.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Config holds the full runtime configuration of the server.
type Config struct {
	Addr               string          `yaml:"addr"`
	DBPath             string          `yaml:"db_path"`
	StaticDir          string          `yaml:"static_dir"`
	LogLevel           string          `yaml:"log_level"`
	JWTSecret          string          `yaml:"jwt_secret"`
	TokenTTLMinutes    int             `yaml:"token_ttl_minutes"`
	RefreshTTLDays     int             `yaml:"refresh_ttl_days"`
	AllowedOrigins     []string        `yaml:"allowed_origins"`
	MaxMessageSize     int64           `yaml:"max_message_size"`
	AuthTimeoutSeconds int             `yaml:"auth_timeout_seconds"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
}

// Default returns the configuration used when nothing is provided.
func Default() *Config {
	return &Config{
		Addr:               ":8080",
		DBPath:             "./data/teamfinder",
		StaticDir:          "./static",
		LogLevel:           "info",
		JWTSecret:          "",
		TokenTTLMinutes:    30,
		RefreshTTLDays:     7,
		AllowedOrigins:     []string{"http://localhost:3000"},
		MaxMessageSize:     4096,
		AuthTimeoutSeconds: 10,
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
	}
}

// Load builds the configuration by merging, in order: defaults, the YAML file
// at path (if non-empty), and environment variables. A .env file in the
// working directory is loaded first, best effort.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.sanitize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		c.Addr = addr
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		c.DBPath = dbPath
	}
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		c.StaticDir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWTSecret = secret
	}
	if ttl := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); ttl != "" {
		c.TokenTTLMinutes = parseIntValue(ttl, c.TokenTTLMinutes)
	}
	if ttl := os.Getenv("REFRESH_TOKEN_EXPIRE_DAYS"); ttl != "" {
		c.RefreshTTLDays = parseIntValue(ttl, c.RefreshTTLDays)
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		c.MaxMessageSize = parseInt64Value(maxSize, c.MaxMessageSize)
	}
	if timeout := os.Getenv("AUTH_TIMEOUT_SECONDS"); timeout != "" {
		c.AuthTimeoutSeconds = parseIntValue(timeout, c.AuthTimeoutSeconds)
	}
	if rps := os.Getenv("RATE_LIMIT_RPS"); rps != "" {
		c.RateLimit.RPS = parseFloatValue(rps, c.RateLimit.RPS)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		c.RateLimit.Burst = parseIntValue(burst, c.RateLimit.Burst)
	}
}

func (c *Config) sanitize() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if !strings.Contains(c.Addr, ":") {
		c.Addr = ":" + c.Addr
	}
	if c.DBPath == "" {
		c.DBPath = "./data/teamfinder"
	}
	if c.TokenTTLMinutes <= 0 {
		c.TokenTTLMinutes = 30
	}
	if c.RefreshTTLDays <= 0 {
		c.RefreshTTLDays = 7
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.AuthTimeoutSeconds <= 0 {
		c.AuthTimeoutSeconds = 10
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 5
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
}

// TokenTTL returns the configured access token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// RefreshTTL returns the configured refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// AuthTimeout returns how long a socket may take to send its authenticate
// frame before the session is closed.
func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutSeconds) * time.Second
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseFloatValue(value string, defaultValue float64) float64 {
	if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
