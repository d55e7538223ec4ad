package server

import (
	"context"
	"fmt"
	"time"

	"trivia-lab/domain"
	"trivia-lab/domain/event"
	"trivia-lab/errors"
	"trivia-lab/infrastructure/http/wire"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// feed streams the change feed of a session as JSON frames.
// GET /sessions/:id/feed
// The first frame is the subscribed status. After an unhealthy status the
// connection is closed and the client is expected to subscribe again.
func (s *Server) feed(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))
	if !s.trackFeed() {
		s.fail(c, fmt.Errorf("%w: server shutting down", errors.ErrSubscriptionFailure))
		return
	}
	defer s.feeds.Done()
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := s.games.Subscribe(ctx, sessionID)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Reader: clients send nothing, reading only detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("Feed read error", "session_id", sessionID, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case e := <-sub.Events():
			frame, err := wire.FromEvent(e)
			if err != nil {
				s.log.Error("Cannot encode change", "session_id", sessionID, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				s.log.Debug("Feed write failed", "session_id", sessionID, "error", err)
				return
			}
			if status, ok := e.(event.StatusChanged); ok && !status.Healthy() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, string(status.Status)),
					time.Now().Add(writeWait))
				return
			}
		}
	}
}
