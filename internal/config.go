package internal

import (
	"fmt"
	"time"
)

type Config struct {
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	Host           string `env:"HOST,required=true"`
	Port           int    `env:"PORT,required=true"`

	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	SubscriberBufferSize int           `env:"SUBSCRIBER_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=0s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=8"`

	RoundCount      int `env:"ROUND_COUNT,default=8"`
	MinParticipants int `env:"MIN_PARTICIPANTS,default=2"`

	JWTSecret           string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration   time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	HandleTokenDuration time.Duration `env:"HANDLE_TOKEN_DURATION,default=720h"`
	CharReplacement     string        `env:"CHARACTER_REPLACEMENT,required=true"`

	InspectPort int `env:"INSPECT_PORT,default=0"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
