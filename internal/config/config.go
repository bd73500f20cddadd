package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the server reads from the environment. A local
// .env file is loaded first when present.
type Config struct {
	Addr       string `envconfig:"ADDR" default:":8080"`
	JWTSecret  string `envconfig:"JWT_SECRET" required:"true"`
	Store      string `envconfig:"STORE" default:"memory"` // memory | valkey
	ValkeyAddr string `envconfig:"VALKEY_ADDR" default:"127.0.0.1:6379"`
	ClientURL  string `envconfig:"CLIENT_URL" default:"http://localhost:5173"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine; real env vars still apply

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store != "memory" && cfg.Store != "valkey" {
		return nil, fmt.Errorf("unknown STORE %q (want memory or valkey)", cfg.Store)
	}
	return &cfg, nil
}
