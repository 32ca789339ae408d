package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server reads from the environment so main
// stays lean.
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	// PublicBaseURL is used when minting share links. When empty, links are
	// derived from the incoming request's Host header.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	// DatabaseURL enables the Postgres-backed event directory and location
	// store. Empty means in-memory stores (single instance, dev only).
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"bouncehub"`

	// AnthropicAPIKey enables the commentary engine. Empty disables it;
	// presence and chat keep working without commentary.
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`

	Redis Redis `envPrefix:"REDIS_"`
}

// Redis captures connection pool settings for the pub/sub bus. An empty URL
// means no bus: fan-out stays local to this instance.
type Redis struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
