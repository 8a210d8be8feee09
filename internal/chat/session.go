package chat

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vhp90/esports-team-finder/internal/metrics"
	"github.com/vhp90/esports-team-finder/internal/model"
)

// RoomStore is the slice of the document store the chat subsystem consumes:
// room lookups for authorization and message persistence. The store is
// authoritative for history; the socket is a lossy push on top of it.
type RoomStore interface {
	GetChat(chatID string) (*model.Chat, error)
	AppendMessage(chatID, senderID, content string) (*model.Message, error)
}

// TokenVerifier resolves a bearer credential to a user id or fails.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ErrRoomNotFound must be returned by RoomStore.GetChat when the room does
// not exist; the session is then rejected as unauthorized rather than failed.
var ErrRoomNotFound = errors.New("chat: room not found")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	sendQueueSize = 256
)

type sessionState int

const (
	stateConnecting sessionState = iota
	stateAuthenticating
	stateAuthorizing
	stateActive
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAuthenticating:
		return "authenticating"
	case stateAuthorizing:
		return "authorizing"
	case stateActive:
		return "active"
	default:
		return "closed"
	}
}

// SessionConfig carries the per-connection protocol limits.
type SessionConfig struct {
	// AuthTimeout bounds how long the peer may take to send its
	// authenticate frame.
	AuthTimeout time.Duration
	// MaxMessageSize caps inbound frame size in bytes.
	MaxMessageSize int64
	// MessageRPS and MessageBurst bound how fast a connection may post.
	MessageRPS   float64
	MessageBurst int
}

// Session drives one connection through the protocol:
//
//	CONNECTING -> AUTHENTICATING -> AUTHORIZING -> ACTIVE -> CLOSED
//
// The session owns its socket for its whole lifetime; the registry only ever
// holds it as a Conn. Teardown always deregisters a registered session, no
// matter what triggered the close.
type Session struct {
	conn     *websocket.Conn
	chatID   string
	registry *Registry
	fanout   *Fanout
	store    RoomStore
	verifier TokenVerifier
	limiter  *rate.Limiter
	cfg      SessionConfig
	log      *zap.Logger

	send chan []byte

	mu         sync.Mutex
	closed     bool
	registered bool

	// userID is set once during AUTHENTICATING and read-only afterwards.
	userID string
	// state is only touched by the session's own goroutine.
	state sessionState
}

// NewSession wraps an upgraded socket targeting the given chat.
func NewSession(conn *websocket.Conn, chatID string, registry *Registry, fanout *Fanout, store RoomStore, verifier TokenVerifier, cfg SessionConfig, log *zap.Logger) *Session {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 10 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.MessageRPS <= 0 {
		cfg.MessageRPS = 5
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = 10
	}
	return &Session{
		conn:     conn,
		chatID:   chatID,
		registry: registry,
		fanout:   fanout,
		store:    store,
		verifier: verifier,
		limiter:  rate.NewLimiter(rate.Limit(cfg.MessageRPS), cfg.MessageBurst),
		cfg:      cfg,
		log:      log,
		send:     make(chan []byte, sendQueueSize),
		state:    stateConnecting,
	}
}

// Run executes the session until it closes. It blocks and should be called in
// its own goroutine, one per connection.
func (s *Session) Run() {
	defer s.teardown()

	s.conn.SetReadLimit(s.cfg.MaxMessageSize)

	if err := s.authenticate(); err != nil {
		return
	}
	if err := s.authorize(); err != nil {
		return
	}

	s.registry.Register(s.chatID, s)
	s.setRegistered()
	metrics.ActiveConnections.Inc()
	s.log.Info("session_active",
		zap.String("chat_id", s.chatID),
		zap.String("user_id", s.userID),
	)

	go s.writePump()
	s.readLoop()
}

// authenticate consumes the first frame, which must carry a bearer token, and
// resolves it to a user id. Any malformed first frame closes the session with
// a policy violation; a bad token closes it with an authentication failure.
func (s *Session) authenticate() error {
	s.state = stateAuthenticating

	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.AuthTimeout)); err != nil {
		return err
	}
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		s.log.Debug("auth_frame_read_failed", zap.String("chat_id", s.chatID), zap.Error(err))
		return err
	}

	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != frameTypeAuthenticate || frame.Token == "" {
		s.closeWith(websocket.ClosePolicyViolation, "expected authenticate frame")
		return errors.New("chat: malformed authenticate frame")
	}

	userID, err := s.verifier.Verify(frame.Token)
	if err != nil {
		s.log.Info("session_auth_rejected", zap.String("chat_id", s.chatID), zap.Error(err))
		s.closeWith(CloseAuthenticationFailure, "invalid credentials")
		return err
	}
	s.userID = userID
	return nil
}

// authorize checks that the authenticated user is a participant of the target
// room. A missing room and a non-participant are rejected identically.
func (s *Session) authorize() error {
	s.state = stateAuthorizing

	room, err := s.store.GetChat(s.chatID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			s.closeWith(CloseAuthorizationFailure, "not a participant of this chat")
			return err
		}
		s.log.Error("room_lookup_failed", zap.String("chat_id", s.chatID), zap.Error(err))
		s.closeWith(websocket.CloseInternalServerErr, "chat lookup failed")
		return err
	}
	if !room.HasParticipant(s.userID) {
		s.log.Info("session_authz_rejected",
			zap.String("chat_id", s.chatID),
			zap.String("user_id", s.userID),
		)
		s.closeWith(CloseAuthorizationFailure, "not a participant of this chat")
		return errors.New("chat: not a participant")
	}
	s.state = stateActive
	return nil
}

// readLoop processes inbound frames until the transport fails. Malformed
// frames are ignored here; only the handshake treats them as fatal.
func (s *Session) readLoop() {
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) && !isExpectedCloseError(err) {
				s.log.Warn("session_read_error",
					zap.String("chat_id", s.chatID),
					zap.String("user_id", s.userID),
					zap.Error(err),
				)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != frameTypeMessage || frame.Content == "" {
			s.log.Debug("ignoring_malformed_frame", zap.String("chat_id", s.chatID))
			continue
		}

		if !s.limiter.Allow() {
			s.log.Debug("message_rate_limited",
				zap.String("chat_id", s.chatID),
				zap.String("user_id", s.userID),
			)
			continue
		}

		s.handleMessage(frame.Content)
	}
}

// handleMessage persists the message and fans it out to the room's other
// live connections. A persistence failure is reported to the sender without
// tearing down the session.
func (s *Session) handleMessage(content string) {
	msg, err := s.store.AppendMessage(s.chatID, s.userID, content)
	if err != nil {
		s.sendError("failed to store message")
		return
	}
	metrics.MessagesPersisted.Inc()

	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("message_marshal_failed", zap.String("chat_id", s.chatID), zap.Error(err))
		return
	}
	s.fanout.Deliver(s.chatID, payload, s.userID)
}

func (s *Session) sendError(detail string) {
	payload, err := json.Marshal(errorFrame{Type: frameTypeError, Error: detail})
	if err != nil {
		return
	}
	if err := s.TrySend(payload); err != nil {
		s.log.Debug("error_frame_dropped", zap.String("chat_id", s.chatID), zap.Error(err))
	}
}

// writePump owns all data writes to the socket. It drains the send queue and
// pings the peer so dead connections fail the read deadline within a minute.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					s.log.Debug("session_write_error", zap.String("chat_id", s.chatID), zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a payload for the peer without blocking. It implements Conn.
func (s *Session) TrySend(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Kill closes the underlying transport. It implements Conn and is safe to
// call from any goroutine; the session's read loop observes the closed socket
// and runs the normal teardown.
func (s *Session) Kill() {
	_ = s.conn.Close()
}

// UserID returns the authenticated identity, empty before AUTHENTICATING
// completes.
func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) setRegistered() {
	s.mu.Lock()
	s.registered = true
	s.mu.Unlock()
}

// closeWith writes a close control frame carrying the given code before the
// transport is torn down. WriteControl is safe concurrently with the pumps.
func (s *Session) closeWith(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !isExpectedCloseError(err) {
		s.log.Debug("close_frame_write_failed", zap.String("chat_id", s.chatID), zap.Error(err))
	}
}

// teardown moves the session to CLOSED exactly once. Deregistration is not
// optional cleanup: a leaked registration would leave a dead connection for
// the fan-out engine to trip over.
func (s *Session) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	registered := s.registered
	s.mu.Unlock()

	prev := s.state
	s.state = stateClosed

	if registered {
		s.registry.Deregister(s.chatID, s)
		metrics.ActiveConnections.Dec()
	}
	s.log.Info("session_closed",
		zap.String("chat_id", s.chatID),
		zap.String("user_id", s.userID),
		zap.Stringer("last_state", prev),
	)

	close(s.send)
	_ = s.conn.Close()
}

// isExpectedCloseError reports errors that routinely accompany a connection
// shutting down and are not worth logging loudly.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
