package chat

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandlerOptions bundles the collaborators the socket endpoint needs.
type HandlerOptions struct {
	Registry    *Registry
	Fanout      *Fanout
	Store       RoomStore
	Verifier    TokenVerifier
	Session     SessionConfig
	CheckOrigin func(*http.Request) bool
	Logger      *zap.Logger
}

// Handler returns the HTTP handler for GET /api/ws/chat/{chat_id}. It
// upgrades the connection and hands it to a new session goroutine; all
// authentication happens in-band after the upgrade.
func Handler(opts HandlerOptions) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     opts.CheckOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		chatID := mux.Vars(r)["chat_id"]
		if chatID == "" {
			http.Error(w, "chat id is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			opts.Logger.Warn("websocket_upgrade_failed",
				zap.String("chat_id", chatID),
				zap.String("remote", r.RemoteAddr),
				zap.Error(err),
			)
			return
		}

		session := NewSession(conn, chatID, opts.Registry, opts.Fanout, opts.Store, opts.Verifier, opts.Session, opts.Logger)
		go session.Run()
	}
}
