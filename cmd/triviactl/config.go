package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL string `envconfig:"TRIVIA_SERVER_URL" default:"http://localhost:8080"`
	// TRIVIA_COLOURS enables colorized output
	Colours    bool          `envconfig:"TRIVIA_COLOURS" default:"true"`
	Timeout    time.Duration `envconfig:"TRIVIA_TIMEOUT" default:"5s"`
	BufferSize int           `envconfig:"TRIVIA_BUFFER_SIZE" default:"64"`
	LogLevel   string        `envconfig:"TRIVIA_LOG_LEVEL" default:"WARN"`
	Backoff    time.Duration `envconfig:"FEED_RETRY_BACKOFF" default:"2s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
