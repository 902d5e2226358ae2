package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Client is the CLI configuration. Flags override these env-derived defaults.
type Client struct {
	APIURL     string        `env:"MH_API_URL" env-default:"http://localhost:8000/api"`
	ConfigDir  string        `env:"MH_CONFIG_DIR"`
	Passphrase string        `env:"MH_TOKEN_PASSPHRASE"`
	Timeout    time.Duration `env:"MH_TIMEOUT" env-default:"30s"`
}

// LoadClient reads the CLI configuration from the environment.
func LoadClient() (*Client, error) {
	var cfg Client
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read client env: %w", err)
	}
	return &cfg, nil
}
