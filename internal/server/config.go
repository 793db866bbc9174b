// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the LanShare service.
package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	defaultPort            = ":5000"
	defaultMaxMessageSize  = 64 * 1024
	defaultBurst           = 100
	defaultRefillInterval  = time.Minute
	defaultSendBufferSize  = 256
	defaultMaxHistory      = 10000
	defaultMaxUploadSize   = 5 * 1024 * 1024 * 1024
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "INFO"
)

// RateLimitConfig defines the parameters for per-connection event rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port                    string        `env:"SERVER_PORT,default=:5000"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS,default=*"`
	MaxMessageSize          int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=100"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=60s"`
	SendBufferSize          int           `env:"SEND_BUFFER_SIZE,default=256"`
	MaxHistoryEntries       int           `env:"MAX_HISTORY_ENTRIES,default=10000"`
	UploadDir               string        `env:"UPLOAD_DIR"`
	MaxUploadSize           int64         `env:"MAX_UPLOAD_SIZE,default=5368709120"`
	BlobIndexDir            string        `env:"BLOB_INDEX_DIR"`
	LogLevel                string        `env:"LOG_LEVEL,default=INFO"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() Config {
	return Config{AllowedOrigins: "*"}.Sanitize()
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg.Sanitize(), nil
}

// Sanitize replaces unset or invalid values with defaults.
func (c Config) Sanitize() Config {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultBurst
	}
	if c.RateLimitRefillInterval <= 0 {
		c.RateLimitRefillInterval = defaultRefillInterval
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}
	if c.MaxHistoryEntries < 0 {
		c.MaxHistoryEntries = defaultMaxHistory
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(os.TempDir(), "lanshare-uploads")
	}
	if c.MaxUploadSize <= 0 {
		c.MaxUploadSize = defaultMaxUploadSize
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return c
}

// Origins returns the configured origin allow-list.
func (c Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// RateLimit returns the per-connection rate limiting parameters.
func (c Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{Burst: c.RateLimitBurst, RefillInterval: c.RateLimitRefillInterval}
}

// ClientOptions returns the per-connection settings derived from the config.
func (c Config) ClientOptions() ClientOptions {
	return ClientOptions{
		MaxMessageSize: c.MaxMessageSize,
		SendBufferSize: c.SendBufferSize,
		RateLimit:      c.RateLimit(),
	}
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
