package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trivia-lab/client"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	log    *slog.Logger
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("TRIVIA_SERVER_URL not set")
	}
	s.log = logs.GetLoggerFromLevel(slog.LevelInfo)
}

// WithClient runs fn with an anonymous client inside a named, timed step.
func (s *BaseHTTPSuite) WithClient(name string, fn func(ctx context.Context, c *client.Client)) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()
	start := time.Now()
	fn(ctx, client.New(s.log, s.Config.ServerURL, s.Config.Timeout, 64))
	s.T().Logf("%s done in %v", name, time.Since(start))
}
