package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trivia-lab/internal"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource so that deferred cleanup happens before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	if !strings.EqualFold(config.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Components
	app, err := internal.NewApp(log, db, config)
	if err != nil {
		return fmt.Errorf("wiring failed: %w", err)
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start the change feed
	app.Start(ctx)

	// 6. HTTP Servers
	servers := []*http.Server{{
		Addr:              config.Addr(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}}
	servers[0].RegisterOnShutdown(app.CloseFeeds)
	if config.InspectPort > 0 {
		servers = append(servers, internal.NewDebugServer(db, fmt.Sprintf("%s:%d", config.Host, config.InspectPort), app.Stats))
	}

	errChan := make(chan error, len(servers))
	for _, server := range servers {
		go func() {
			log.Info("Starting HTTP server", "address", server.Addr, "at", time.Now().UTC())
			if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("HTTP server error on %s: %w", server.Addr, err)
			}
		}()
	}

	// 7. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server did not stop cleanly", "address", server.Addr, "error", err)
		}
	}
	app.Stop()
	log.Info("Program stopped cleanly")

	return runErr
}
