package main

import (
	"time"

	"github.com/Tyrowin/gigboard/internal/server"
)

// Config is read from the environment, after an optional .env file.
type Config struct {
	Port                    string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS"`
	MaxMessageSize          int64         `env:"MAX_MESSAGE_SIZE,default=8192"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=10"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	SendBufferSize          int           `env:"SEND_BUFFER_SIZE,default=256"`
	StoreTimeout            time.Duration `env:"STORE_TIMEOUT,default=5s"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	StoreBackend            string        `env:"STORE_BACKEND,default=badger"`
	DatabaseURL             string        `env:"DATABASE_URL"`
	BadgerPath              string        `env:"BADGER_PATH"`
	JWTSecret               string        `env:"JWT_SECRET,required=true"`
	TokenTTL                time.Duration `env:"TOKEN_TTL,default=1h"`
	LogLevel                string        `env:"LOG_LEVEL,default=info"`
	LogFormat               string        `env:"LOG_FORMAT,default=json"`
}

// gatewayConfig maps the environment onto the real-time gateway settings.
// An empty origin list keeps the gateway defaults.
func (c Config) gatewayConfig() *server.Config {
	cfg := server.NewConfig()
	cfg.Port = c.Port
	if origins := server.ParseOrigins(c.AllowedOrigins); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	cfg.MaxMessageSize = c.MaxMessageSize
	cfg.SendBufferSize = c.SendBufferSize
	cfg.StoreTimeout = c.StoreTimeout
	cfg.RateLimit = server.RateLimitConfig{
		Burst:          c.RateLimitBurst,
		RefillInterval: c.RateLimitRefillInterval,
	}
	return cfg
}
