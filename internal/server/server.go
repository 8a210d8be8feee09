// Package server wires the REST surface, the chat socket endpoint, and the
// static frontend into one HTTP service.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vhp90/esports-team-finder/internal/auth"
	"github.com/vhp90/esports-team-finder/internal/chat"
	"github.com/vhp90/esports-team-finder/internal/config"
	"github.com/vhp90/esports-team-finder/internal/metrics"
	"github.com/vhp90/esports-team-finder/internal/model"
	"github.com/vhp90/esports-team-finder/internal/store"
)

// Server owns the HTTP listener and all request handlers.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *store.Store
	tokens   *auth.TokenManager
	hasher   *auth.PasswordHasher
	registry *chat.Registry
	fanout   *chat.Fanout

	httpServer      *http.Server
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
}

// New assembles the server. The registry and fan-out engine are injected so
// the REST layer and the socket layer share the same live-connection state.
func New(cfg *config.Config, log *zap.Logger, st *store.Store, tokens *auth.TokenManager, registry *chat.Registry, fanout *chat.Fanout) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		store:    st,
		tokens:   tokens,
		hasher:   auth.NewPasswordHasher(),
		registry: registry,
		fanout:   fanout,
	}
	s.setAllowedOrigins(cfg.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withLogging(s.withCORS(s.routes())),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// chatRoomStore adapts the document store to the chat core's RoomStore,
// translating the store's not-found into the chat package's sentinel.
type chatRoomStore struct {
	store *store.Store
}

func (c chatRoomStore) GetChat(chatID string) (*model.Chat, error) {
	room, err := c.store.GetChat(chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, chat.ErrRoomNotFound
	}
	return room, err
}

func (c chatRoomStore) AppendMessage(chatID, senderID, content string) (*model.Message, error) {
	return c.store.AppendMessage(chatID, senderID, content)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefreshToken).Methods(http.MethodPost)

	// The socket endpoint is not behind the bearer middleware: the session
	// authenticates in-band with its first frame.
	api.HandleFunc("/ws/chat/{chat_id}", chat.Handler(chat.HandlerOptions{
		Registry: s.registry,
		Fanout:   s.fanout,
		Store:    chatRoomStore{store: s.store},
		Verifier: s.tokens,
		Session: chat.SessionConfig{
			AuthTimeout:    s.cfg.AuthTimeout(),
			MaxMessageSize: s.cfg.MaxMessageSize,
			MessageRPS:     s.cfg.RateLimit.RPS,
			MessageBurst:   s.cfg.RateLimit.Burst,
		},
		CheckOrigin: s.checkOrigin,
		Logger:      s.log,
	})).Methods(http.MethodGet)

	priv := api.PathPrefix("").Subrouter()
	priv.Use(auth.Middleware(s.tokens))
	priv.HandleFunc("/users/me", s.handleCurrentUser).Methods(http.MethodGet)
	priv.HandleFunc("/users/match", s.handleMatchUsers).Methods(http.MethodGet)

	priv.HandleFunc("/teams", s.handleCreateTeam).Methods(http.MethodPost)
	priv.HandleFunc("/teams", s.handleListTeams).Methods(http.MethodGet)
	priv.HandleFunc("/teams/{team_id}", s.handleGetTeam).Methods(http.MethodGet)
	priv.HandleFunc("/teams/{team_id}", s.handleUpdateTeam).Methods(http.MethodPut)
	priv.HandleFunc("/teams/{team_id}", s.handleDeleteTeam).Methods(http.MethodDelete)
	priv.HandleFunc("/teams/{team_id}/join", s.handleJoinTeam).Methods(http.MethodPost)
	priv.HandleFunc("/teams/{team_id}/leave", s.handleLeaveTeam).Methods(http.MethodPost)

	priv.HandleFunc("/chats", s.handleCreateChat).Methods(http.MethodPost)
	priv.HandleFunc("/chats", s.handleListChats).Methods(http.MethodGet)
	priv.HandleFunc("/chats/{chat_id}/messages", s.handleListMessages).Methods(http.MethodGet)
	priv.HandleFunc("/chats/{chat_id}/messages", s.handleCreateMessage).Methods(http.MethodPost)

	priv.HandleFunc("/notifications", s.handleCreateNotification).Methods(http.MethodPost)
	priv.HandleFunc("/notifications/me", s.handleListNotifications).Methods(http.MethodGet)
	priv.HandleFunc("/notifications/{notification_id}/read", s.handleMarkNotificationRead).Methods(http.MethodPut)

	if s.cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(spaHandler{staticDir: s.cfg.StaticDir})
	}
	return r
}

// Router exposes the fully wired handler for tests.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.log.Info("server_listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP listener, then force-closes any chat
// sessions that are still attached so their teardown runs.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)

	for _, conn := range s.registry.SnapshotAll() {
		conn.Kill()
	}
	s.log.Info("server_stopped")
	return err
}
