package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vhp90/esports-team-finder/internal/model"
	"github.com/vhp90/esports-team-finder/internal/store"
)

type createTeamRequest struct {
	Name         string `json:"name"`
	Game         string `json:"game"`
	Description  string `json:"description"`
	SkillLevel   string `json:"skill_level"`
	Requirements string `json:"requirements"`
	MaxMembers   int    `json:"max_members"`
}

type updateTeamRequest struct {
	Name         *string `json:"name"`
	Game         *string `json:"game"`
	Description  *string `json:"description"`
	SkillLevel   *string `json:"skill_level"`
	Requirements *string `json:"requirements"`
	MaxMembers   *int    `json:"max_members"`
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	var req createTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Game == "" {
		s.writeError(w, http.StatusBadRequest, "name and game are required")
		return
	}

	team := &model.Team{
		Name:         req.Name,
		Game:         req.Game,
		Description:  req.Description,
		SkillLevel:   req.SkillLevel,
		Requirements: req.Requirements,
		MaxMembers:   req.MaxMembers,
	}
	if err := s.store.CreateTeam(team, user.ID); err != nil {
		s.log.Error("team_create_failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create team")
		return
	}

	s.notifySimilarPlayers(team, user.ID)
	s.writeJSON(w, http.StatusCreated, team)
}

// notifySimilarPlayers alerts users whose profile matches the new team's game
// and skill level. Failures here never fail team creation.
func (s *Server) notifySimilarPlayers(team *model.Team, creatorID string) {
	matches, err := s.store.MatchUsers(team.Game, team.SkillLevel, creatorID)
	if err != nil {
		s.log.Warn("similar_player_lookup_failed", zap.String("team_id", team.ID), zap.Error(err))
		return
	}
	for _, u := range matches {
		n := &model.Notification{
			RecipientID: u.ID,
			Type:        model.NotificationSimilarInterest,
			Title:       fmt.Sprintf("New Team Alert: %s", team.Name),
			Message:     fmt.Sprintf("A new team playing %s at %s skill level is looking for members!", team.Game, team.SkillLevel),
			TeamID:      team.ID,
			SenderID:    creatorID,
		}
		if err := s.store.CreateNotification(n); err != nil {
			s.log.Warn("notification_create_failed", zap.String("recipient_id", u.ID), zap.Error(err))
		}
	}
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(r.URL.Query().Get("game"), r.URL.Query().Get("skill_level"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	if teams == nil {
		teams = []*model.Team{}
	}
	s.writeJSON(w, http.StatusOK, teams)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.GetTeam(mux.Vars(r)["team_id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}
	s.writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	team, err := s.store.GetTeam(mux.Vars(r)["team_id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}
	if team.LeaderID != user.ID {
		s.writeError(w, http.StatusForbidden, "Only team leader can update team")
		return
	}

	var req updateTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil {
		team.Name = *req.Name
	}
	if req.Game != nil {
		team.Game = *req.Game
	}
	if req.Description != nil {
		team.Description = *req.Description
	}
	if req.SkillLevel != nil {
		team.SkillLevel = *req.SkillLevel
	}
	if req.Requirements != nil {
		team.Requirements = *req.Requirements
	}
	if req.MaxMembers != nil && *req.MaxMembers > 0 {
		team.MaxMembers = *req.MaxMembers
	}

	if err := s.store.UpdateTeam(team); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to update team")
		return
	}
	s.writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	teamID := mux.Vars(r)["team_id"]
	team, err := s.store.GetTeam(teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}
	if team.LeaderID != user.ID {
		s.writeError(w, http.StatusForbidden, "Only team leader can delete team")
		return
	}
	if err := s.store.DeleteTeam(teamID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to delete team")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Team successfully deleted"})
}

func (s *Server) handleJoinTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	_, err := s.store.JoinTeam(mux.Vars(r)["team_id"], user.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "Team not found")
		case errors.Is(err, store.ErrAlreadyMember):
			s.writeError(w, http.StatusBadRequest, "Already a member of this team")
		case errors.Is(err, store.ErrTeamFull):
			s.writeError(w, http.StatusBadRequest, "Team is full")
		default:
			s.writeError(w, http.StatusInternalServerError, "failed to join team")
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully joined team"})
}

func (s *Server) handleLeaveTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	_, err := s.store.LeaveTeam(mux.Vars(r)["team_id"], user.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "Team not found")
		case errors.Is(err, store.ErrNotMember):
			s.writeError(w, http.StatusBadRequest, "Not a member of this team")
		case errors.Is(err, store.ErrLeaderCannotLeave):
			s.writeError(w, http.StatusBadRequest, "Team leader cannot leave. Transfer leadership first.")
		default:
			s.writeError(w, http.StatusInternalServerError, "failed to leave team")
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully left team"})
}
