// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the real-time gateway.
package server

import (
	"strings"
	"sync"
	"time"
)

const (
	defaultPort           = ":8080"
	defaultMaxMessageSize = 8192
	defaultSendBufferSize = 256
	defaultStoreTimeout   = 5 * time.Second
	defaultRateBurst      = 10
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the gateway configuration settings including security controls.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	SendBufferSize int
	StoreTimeout   time.Duration
	RateLimit      RateLimitConfig
}

var (
	configMu      sync.RWMutex
	activeConfig  Config
	activeOrigins originPolicy
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
			"http://localhost:5173",
		},
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBufferSize,
		StoreTimeout:   defaultStoreTimeout,
		RateLimit: RateLimitConfig{
			Burst:          defaultRateBurst,
			RefillInterval: time.Second,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultRateBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	policy, accepted := newOriginPolicy(cfg.AllowedOrigins)
	cfg.AllowedOrigins = accepted

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	activeOrigins = policy

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
// It returns the sanitized configuration now in effect.
func SetConfig(cfg *Config) Config {
	if cfg == nil {
		return sanitizeConfig(defaultConfig())
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// CurrentConfig returns a copy of the configuration in effect.
func CurrentConfig() Config {
	return currentConfig()
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// ParseOrigins splits a comma separated origin list such as the
// ALLOWED_ORIGINS environment variable.
func ParseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
