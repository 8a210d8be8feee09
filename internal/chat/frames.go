package chat

import "errors"

// Close codes sent when a session is rejected. 1008 (policy violation) is
// used for malformed handshakes; 4001 and 4003 are application codes for
// failed authentication and authorization.
const (
	CloseAuthenticationFailure = 4001
	CloseAuthorizationFailure  = 4003
)

// Frame types exchanged over the socket.
const (
	frameTypeAuthenticate = "authenticate"
	frameTypeMessage      = "message"
	frameTypeError        = "error"
)

var (
	// ErrSessionClosed is returned by TrySend after the session has been
	// torn down.
	ErrSessionClosed = errors.New("chat: session closed")
	// ErrSendBufferFull is returned by TrySend when the peer is not reading
	// fast enough and its outbound queue is full.
	ErrSendBufferFull = errors.New("chat: send buffer full")
)

// inboundFrame is any client-to-server payload. The first frame of a session
// must carry type "authenticate" and a token; every later frame must carry
// type "message" and content.
type inboundFrame struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	Content string `json:"content,omitempty"`
}

// errorFrame reports a failed operation back to the sender without closing
// the session.
type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
