// Package client talks to a trivia-lab server over HTTP and WebSocket.
// A Client is a contract.FeedSource, so a RosterSynchronizer can run remotely.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"trivia-lab/auth"
	"trivia-lab/contract"
	"trivia-lab/domain"
	"trivia-lab/domain/event"
	"trivia-lab/errors"
	"trivia-lab/infrastructure/http/wire"

	"github.com/gorilla/websocket"
)

var _ contract.FeedSource = (*Client)(nil)

type Client struct {
	log     *slog.Logger
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
	// bufferSize bounds the frames queued ahead of a slow reader.
	bufferSize int

	mu     sync.RWMutex
	bearer string
	handle string
}

func New(log *slog.Logger, baseURL string, timeout time.Duration, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Client{
		log:        log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: timeout},
		bufferSize: bufferSize,
	}
}

// WithBearer returns a copy authenticated as an account.
func (c *Client) WithBearer(token string) *Client {
	return c.with(func(n *Client) { n.bearer = token })
}

// WithHandle returns a copy acting as a joined participant.
func (c *Client) WithHandle(handle string) *Client {
	return c.with(func(n *Client) { n.handle = handle })
}

func (c *Client) with(fn func(*Client)) *Client {
	c.mu.RLock()
	n := &Client{
		log: c.log, baseURL: c.baseURL, http: c.http, dialer: c.dialer, bufferSize: c.bufferSize,
		bearer: c.bearer, handle: c.handle,
	}
	c.mu.RUnlock()
	fn(n)
	return n
}

func (c *Client) headers() http.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h := http.Header{}
	if c.bearer != "" {
		h.Set(auth.AuthorizationHeader, "Bearer "+c.bearer)
	}
	if c.handle != "" {
		h.Set(auth.HandleHeader, c.handle)
	}
	return h
}

func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var out wire.TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", wire.Credentials{Email: email, Password: password}, &out)
	return out.Token, err
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out wire.TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", wire.Credentials{Email: email, Password: password}, &out)
	return out.Token, err
}

func (c *Client) CreateSession(ctx context.Context, name string) (domain.Session, error) {
	var out wire.Session
	if err := c.do(ctx, http.MethodPost, "/sessions", wire.CreateSessionRequest{Name: name}, &out); err != nil {
		return domain.Session{}, err
	}
	return out.ToDomain(), nil
}

func (c *Client) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	var out wire.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(string(id)), nil, &out); err != nil {
		return domain.Session{}, err
	}
	return out.ToDomain(), nil
}

func (c *Client) ListParticipants(ctx context.Context, id domain.SessionID) ([]domain.Participant, error) {
	var out []wire.Participant
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(string(id))+"/participants", nil, &out); err != nil {
		return nil, err
	}
	return wire.ToParticipants(out), nil
}

// Join returns the participant and the handle to present on later calls.
func (c *Client) Join(ctx context.Context, id domain.SessionID, displayName string) (domain.Participant, string, error) {
	var out wire.JoinResponse
	err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(string(id))+"/participants",
		wire.JoinRequest{DisplayName: displayName}, &out)
	if err != nil {
		return domain.Participant{}, "", err
	}
	return out.Participant.ToDomain(), out.Handle, nil
}

func (c *Client) Rename(ctx context.Context, id domain.SessionID, participantID domain.ParticipantID,
	displayName string) (domain.Participant, error) {
	var out wire.Participant
	err := c.do(ctx, http.MethodPatch,
		"/sessions/"+url.PathEscape(string(id))+"/participants/"+url.PathEscape(string(participantID)),
		wire.RenameRequest{DisplayName: displayName}, &out)
	return out.ToDomain(), err
}

func (c *Client) Remove(ctx context.Context, id domain.SessionID, participantID domain.ParticipantID) error {
	return c.do(ctx, http.MethodDelete,
		"/sessions/"+url.PathEscape(string(id))+"/participants/"+url.PathEscape(string(participantID)), nil, nil)
}

// Start returns the committed session and whether somebody else started it first.
func (c *Client) Start(ctx context.Context, id domain.SessionID, roster []domain.ParticipantID) (domain.Session, bool, error) {
	req := wire.StartRequest{Roster: make([]string, 0, len(roster))}
	for _, p := range roster {
		req.Roster = append(req.Roster, string(p))
	}
	var out wire.StartResponse
	if err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(string(id))+"/start", req, &out); err != nil {
		return domain.Session{}, false, err
	}
	return out.Session.ToDomain(), out.AlreadyStarted, nil
}

// do sends body as JSON and decodes the answer into out.
// API errors come back as the matching sentinel from package errors.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header = c.headers()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var apiErr wire.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if sentinel := errors.FromCode(apiErr.Code); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, apiErr.Error)
	}
	return fmt.Errorf("server error (%d): %s", resp.StatusCode, apiErr.Error)
}

// SubscribeParticipantChanges opens the WebSocket feed of a session.
// A broken connection shows up as a closed status followed by the end of the channel.
func (c *Client) SubscribeParticipantChanges(ctx context.Context, id domain.SessionID) (contract.Subscription, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/sessions/" + url.PathEscape(string(id)) + "/feed"
	conn, resp, err := c.dialer.DialContext(ctx, wsURL, c.headers())
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= http.StatusBadRequest {
				return nil, decodeError(resp)
			}
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrSubscriptionFailure, err)
	}
	sub := &remoteSubscription{
		log:       c.log,
		sessionID: id,
		conn:      conn,
		events:    make(chan event.ChangeEvent, c.bufferSize),
		done:      make(chan struct{}),
	}
	go sub.readLoop()
	return sub, nil
}

type remoteSubscription struct {
	log       *slog.Logger
	sessionID domain.SessionID
	conn      *websocket.Conn
	events    chan event.ChangeEvent
	done      chan struct{}
	closeOnce sync.Once
}

func (s *remoteSubscription) Events() <-chan event.ChangeEvent { return s.events }

func (s *remoteSubscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

func (s *remoteSubscription) readLoop() {
	defer close(s.events)
	for {
		var frame wire.Event
		if err := s.conn.ReadJSON(&frame); err != nil {
			s.emit(event.StatusChanged{Session: s.sessionID, Status: event.StatusClosed, Reason: err.Error()})
			return
		}
		e, err := frame.ToEvent()
		if err != nil {
			s.log.Warn("Dropping malformed frame", "session_id", s.sessionID, "error", err)
			continue
		}
		if !s.emit(e) {
			return
		}
	}
}

func (s *remoteSubscription) emit(e event.ChangeEvent) bool {
	select {
	case s.events <- e:
		return true
	case <-s.done:
		return false
	}
}
