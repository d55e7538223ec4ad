package internal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"trivia-lab/allocation"
	"trivia-lab/auth"
	"trivia-lab/infrastructure/http/server"
	"trivia-lab/lifecycle"
	"trivia-lab/moderation"
	"trivia-lab/repositories"
	"trivia-lab/runtime"
	"trivia-lab/runtime/workers"
	"trivia-lab/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
)

// App holds every component of a running game server on top of one store.
type App struct {
	log          *slog.Logger
	orchestrator *runtime.Orchestrator
	api          *server.Server
	router       *gin.Engine
	games        services.IGameService
}

// NewApp wires the store, the change feed, the game rules and the HTTP API.
// Nothing runs until Start.
func NewApp(log *slog.Logger, db *badger.DB, config Config) (*App, error) {
	char, err := CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	censored, err := moderation.DefaultLoader().LoadAll("censored")
	if err != nil {
		return nil, fmt.Errorf("censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, char, log)
	if err != nil {
		return nil, err
	}
	rng, err := allocation.NewRand()
	if err != nil {
		return nil, err
	}

	orchestrator := runtime.NewOrchestrator(
		log, workers.NewSupervisor(log, config.RestartInterval), runtime.NewRegistry(),
		repositories.NewSessionRepository(db, log),
		config.BufferSize, config.SubscriberBufferSize, config.SinkTimeout,
	).WithCapacityMonitor(config.MetricInterval, config.LowCapacityThreshold)
	feed := orchestrator.Feed()

	tokens := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration, config.HandleTokenDuration)
	allocator := allocation.NewAllocator(config.RoundCount, allocation.PlaceholderQuestions, rng)
	controller := lifecycle.NewController(log, feed, allocator, config.MinParticipants)
	games := services.NewGameService(log, feed, feed, controller, moderator, tokens, nil)
	accounts := services.NewAuthService(repositories.NewUserRepository(db), tokens)

	log.Info("Game server wired",
		"rounds", config.RoundCount,
		"censored_languages", censored.Languages)

	api := server.NewServer(log, games, accounts, auth.NewResolver(tokens))
	return &App{
		log:          log,
		orchestrator: orchestrator,
		api:          api,
		router:       api.Router(),
		games:        games,
	}, nil
}

func (a *App) Start(ctx context.Context) { a.orchestrator.Start(ctx) }

// CloseFeeds ends the open WebSocket feeds. Register it with http.Server.RegisterOnShutdown.
func (a *App) CloseFeeds() { a.api.CloseFeeds() }

// Stop closes the open feeds before the change feed itself.
func (a *App) Stop() {
	a.api.CloseFeeds()
	a.orchestrator.Stop()
}

func (a *App) Handler() http.Handler { return a.router }

func (a *App) Games() services.IGameService { return a.games }

// Stats feeds the inspect page.
func (a *App) Stats() map[string]any { return a.orchestrator.Registry().Stats() }
