// Package config loads coordinator settings from the environment, with a
// .env file picked up in development.
package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	// DatabaseDSN points at the document store the REST layer owns, used
	// only for display-profile reads. Empty disables enrichment and the
	// coordinator runs stand-alone with placeholder profiles.
	DatabaseDSN string `env:"DATABASE_DSN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()
	return env.ParseAs[Config]()
}
