package server

import (
	"fmt"
	"net/http"

	"trivia-lab/auth"
	"trivia-lab/domain"
	"trivia-lab/errors"
	"trivia-lab/infrastructure/http/wire"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
		return false
	}
	return true
}

// POST /auth/register
func (s *Server) register(c *gin.Context) {
	var req wire.Credentials
	if !s.bind(c, &req) {
		return
	}
	token, err := s.accounts.Register(req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, wire.TokenResponse{Token: token.String()})
}

// POST /auth/login
func (s *Server) login(c *gin.Context) {
	var req wire.Credentials
	if !s.bind(c, &req) {
		return
	}
	token, err := s.accounts.Login(req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.TokenResponse{Token: token.String()})
}

// POST /sessions
func (s *Server) createSession(c *gin.Context) {
	var req wire.CreateSessionRequest
	if !s.bind(c, &req) {
		return
	}
	session, err := s.games.CreateSession(c.Request.Context(), auth.AuthorityFrom(c), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, wire.FromSession(session))
}

// GET /sessions/:id
func (s *Server) getSession(c *gin.Context) {
	session, err := s.games.GetSession(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.FromSession(session))
}

// GET /sessions/:id/participants
func (s *Server) listParticipants(c *gin.Context) {
	participants, err := s.games.ListParticipants(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.FromParticipants(participants))
}

// POST /sessions/:id/participants
func (s *Server) join(c *gin.Context) {
	var req wire.JoinRequest
	if !s.bind(c, &req) {
		return
	}
	joined, err := s.games.Join(c.Request.Context(), auth.AuthorityFrom(c), domain.JoinSessionCommand{
		SessionID:   domain.SessionID(c.Param("id")),
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, wire.JoinResponse{
		Participant: wire.FromParticipant(joined.Participant),
		Handle:      joined.Handle,
	})
}

// PATCH /sessions/:id/participants/:pid
func (s *Server) rename(c *gin.Context) {
	var req wire.RenameRequest
	if !s.bind(c, &req) {
		return
	}
	participant, err := s.games.Rename(c.Request.Context(), auth.AuthorityFrom(c), domain.RenameParticipantCommand{
		SessionID:     domain.SessionID(c.Param("id")),
		ParticipantID: domain.ParticipantID(c.Param("pid")),
		DisplayName:   req.DisplayName,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.FromParticipant(participant))
}

// DELETE /sessions/:id/participants/:pid
func (s *Server) remove(c *gin.Context) {
	err := s.games.Remove(c.Request.Context(), auth.AuthorityFrom(c), domain.RemoveParticipantCommand{
		SessionID:     domain.SessionID(c.Param("id")),
		ParticipantID: domain.ParticipantID(c.Param("pid")),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /sessions/:id/start
// A session someone else already started is not an error for the caller.
func (s *Server) start(c *gin.Context) {
	var req wire.StartRequest
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}
	result, err := s.games.StartGame(c.Request.Context(), auth.AuthorityFrom(c), domain.StartGameCommand{
		SessionID: domain.SessionID(c.Param("id")),
		Roster:    lo.Map(req.Roster, func(id string, _ int) domain.ParticipantID { return domain.ParticipantID(id) }),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.StartResponse{
		Session:        wire.FromSession(result.Session),
		AlreadyStarted: result.AlreadyStarted,
	})
}
