package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// TRIVIA_SERVER_URL points at a running server; the suites skip without it
	ServerURL string `envconfig:"TRIVIA_SERVER_URL"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool          `envconfig:"E2E_COLOURS" default:"true"`
	Timeout time.Duration `envconfig:"E2E_TIMEOUT" default:"30s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
