package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vhp90/esports-team-finder/internal/model"
	"github.com/vhp90/esports-team-finder/internal/store"
)

type createNotificationRequest struct {
	RecipientID string `json:"recipient_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	TeamID      string `json:"team_id"`
}

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	var req createNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RecipientID == "" || req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "recipient_id and title are required")
		return
	}

	n := &model.Notification{
		RecipientID: req.RecipientID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		TeamID:      req.TeamID,
		SenderID:    user.ID,
	}
	if err := s.store.CreateNotification(n); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}
	s.writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	notifications, err := s.store.ListNotificationsForUser(user.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	s.writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	err := s.store.MarkNotificationRead(user.ID, mux.Vars(r)["notification_id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Notification not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}
