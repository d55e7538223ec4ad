// Package server exposes the game over HTTP and streams the change feed over WebSocket.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"trivia-lab/auth"
	"trivia-lab/errors"
	"trivia-lab/infrastructure/http/wire"
	"trivia-lab/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

type Server struct {
	log          *slog.Logger
	games        services.IGameService
	accounts     services.IAuthService
	resolver     *auth.Resolver
	upgrader     websocket.Upgrader
	pingInterval time.Duration

	// Open feeds are hijacked connections that http.Server.Shutdown does not track.
	feedsMu sync.Mutex
	feeds   sync.WaitGroup
	closing chan struct{}
	closed  bool
}

func NewServer(log *slog.Logger, games services.IGameService, accounts services.IAuthService,
	resolver *auth.Resolver) *Server {
	return &Server{
		log:      log,
		games:    games,
		accounts: accounts,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		closing:      make(chan struct{}),
	}
}

// CloseFeeds ends every open feed with a going-away close frame and waits for
// their handlers to return. Feeds opened afterwards are refused.
func (s *Server) CloseFeeds() {
	s.feedsMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.closing)
	}
	s.feedsMu.Unlock()
	s.feeds.Wait()
}

// trackFeed registers a feed handler, or reports false once CloseFeeds has run.
func (s *Server) trackFeed() bool {
	s.feedsMu.Lock()
	defer s.feedsMu.Unlock()
	if s.closed {
		return false
	}
	s.feeds.Add(1)
	return true
}

// Router builds the gin engine with every route of the API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	accounts := r.Group("/auth")
	{
		accounts.POST("/register", s.register)
		accounts.POST("/login", s.login)
	}

	sessions := r.Group("/sessions", auth.Identify(s.resolver))
	{
		sessions.POST("", auth.RequirePrincipal(), s.createSession)
		sessions.GET("/:id", s.getSession)
		sessions.GET("/:id/participants", s.listParticipants)
		sessions.POST("/:id/participants", s.join)
		sessions.PATCH("/:id/participants/:pid", s.rename)
		sessions.DELETE("/:id/participants/:pid", s.remove)
		sessions.POST("/:id/start", s.start)
		sessions.GET("/:id/feed", s.feed)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// fail writes err with the status and code matching its kind.
func (s *Server) fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, wire.ErrorResponse{Error: err.Error(), Code: errors.Code(err)})
}
