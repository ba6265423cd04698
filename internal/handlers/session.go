package handlers

import (
	"github.com/thereayou/artem-chat/internal/handlers/dto"
	"github.com/thereayou/artem-chat/internal/logger"
	"github.com/thereayou/artem-chat/internal/metrics"
	ws "github.com/thereayou/artem-chat/internal/websocket"
)

// State - фаза жизни соединения.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session - состояние одного соединения. Меняется только горутиной,
// которая читает это соединение.
type Session struct {
	UserID   int64
	Username string
	Tag      string
	Token    string

	state  State
	bound  bool
	client *ws.Client
	log    *logger.Logger
}

func newSession(client *ws.Client, log *logger.Logger) *Session {
	return &Session{client: client, log: log, state: StateConnecting}
}

func (s *Session) State() State {
	return s.state
}

// send ставит кадр в очередь соединения. Переполненная очередь
// означает потерю кадра, а не ошибку запроса.
func (s *Session) send(v any) {
	if s.client.Closed() {
		return
	}
	if err := s.client.SendFrame(v); err != nil {
		metrics.OutboundDropped.Inc()
		s.log.Debug().Err(err).Msg("outbound frame dropped")
	}
}

func (s *Session) sendError(err error) {
	s.send(dto.NewError(err))
}
