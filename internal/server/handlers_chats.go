package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vhp90/esports-team-finder/internal/metrics"
	"github.com/vhp90/esports-team-finder/internal/model"
	"github.com/vhp90/esports-team-finder/internal/store"
)

type createChatRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
	Kind         string   `json:"type"`
	TeamID       string   `json:"team_id"`
}

type createMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	var req createChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chatRoom := &model.Chat{
		Name:         req.Name,
		Participants: req.Participants,
		Kind:         req.Kind,
		TeamID:       req.TeamID,
	}
	if err := s.store.CreateChat(chatRoom, user.ID); err != nil {
		s.log.Error("chat_create_failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	s.writeJSON(w, http.StatusCreated, chatRoom)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	chats, err := s.store.ListChatsForUser(user.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	if chats == nil {
		chats = []*model.Chat{}
	}
	s.writeJSON(w, http.StatusOK, chats)
}

// participantChat loads the chat and enforces membership. Missing chats and
// non-participants get the same 403, so outsiders cannot probe for chat ids.
func (s *Server) participantChat(w http.ResponseWriter, r *http.Request, userID string) (*model.Chat, bool) {
	chatRoom, err := s.store.GetChat(mux.Vars(r)["chat_id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusForbidden, "Not a participant of this chat")
			return nil, false
		}
		s.writeError(w, http.StatusInternalServerError, "failed to load chat")
		return nil, false
	}
	if !chatRoom.HasParticipant(userID) {
		s.writeError(w, http.StatusForbidden, "Not a participant of this chat")
		return nil, false
	}
	return chatRoom, true
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	chatRoom, ok := s.participantChat(w, r, user.ID)
	if !ok {
		return
	}
	messages, err := s.store.ListMessages(chatRoom.ID, 0)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []*model.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

// handleCreateMessage persists a message posted over REST and pushes it to
// the chat's live sockets, so REST posters and socket senders share one
// delivery path.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	chatRoom, ok := s.participantChat(w, r, user.ID)
	if !ok {
		return
	}

	var req createMessageRequest
	if err := decodeJSON(r, &req); err != nil || req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := s.store.AppendMessage(chatRoom.ID, user.ID, req.Content)
	if err != nil {
		s.log.Error("message_append_failed", zap.String("chat_id", chatRoom.ID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	metrics.MessagesPersisted.Inc()

	if payload, err := json.Marshal(msg); err == nil {
		s.fanout.Deliver(chatRoom.ID, payload, user.ID)
	}

	s.writeJSON(w, http.StatusCreated, msg)
}
