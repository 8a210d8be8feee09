package server

import (
	"net/http"

	"github.com/vhp90/esports-team-finder/internal/auth"
	"github.com/vhp90/esports-team-finder/internal/model"
)

func (s *Server) currentUser(r *http.Request) (*model.User, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		return nil, false
	}
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, false
	}
	return user, true
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	s.writeJSON(w, http.StatusOK, user.Profile())
}

// handleMatchUsers finds players for the requested game at the caller's own
// skill level.
func (s *Server) handleMatchUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	game := r.URL.Query().Get("game")
	if game == "" {
		s.writeError(w, http.StatusBadRequest, "game query parameter is required")
		return
	}

	matches, err := s.store.MatchUsers(game, user.SkillLevel, user.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "match lookup failed")
		return
	}

	profiles := make([]model.UserProfile, 0, len(matches))
	for _, m := range matches {
		profiles = append(profiles, m.Profile())
	}
	s.writeJSON(w, http.StatusOK, profiles)
}
