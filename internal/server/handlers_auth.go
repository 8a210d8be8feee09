package server

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vhp90/esports-team-finder/internal/model"
	"github.com/vhp90/esports-team-finder/internal/store"
)

type registerRequest struct {
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Games        []string `json:"games"`
	SkillLevel   string   `json:"skill_level"`
	PlayStyle    string   `json:"play_style"`
	Availability []string `json:"availability"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to process password")
		return
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Games:        req.Games,
		SkillLevel:   req.SkillLevel,
		PlayStyle:    req.PlayStyle,
		Availability: req.Availability,
	}
	if err := s.store.CreateUser(user); err != nil {
		switch {
		case errors.Is(err, store.ErrUsernameTaken):
			s.writeError(w, http.StatusBadRequest, "Username already taken")
		case errors.Is(err, store.ErrEmailTaken):
			s.writeError(w, http.StatusBadRequest, "Email already registered")
		default:
			s.log.Error("register_failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	token, err := s.tokens.Sign(user.ID)
	if err != nil {
		s.log.Error("token_sign_failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	s.writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Username:    user.Username,
		Email:       user.Email,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil || !s.hasher.Verify(req.Password, user.PasswordHash) {
		// Identical response for unknown email and wrong password.
		s.writeError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	access, refresh, err := s.issueTokenPair(user.ID)
	if err != nil {
		s.log.Error("token_sign_failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	})
}

func (s *Server) issueTokenPair(userID string) (string, string, error) {
	access, err := s.tokens.Sign(userID)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.tokens.SignRefresh(userID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// handleRefreshToken exchanges a refresh token, presented as the bearer
// credential, for a fresh access/refresh pair. Access tokens are rejected
// here, as are tokens for users that no longer exist.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		s.writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	userID, err := s.tokens.VerifyRefresh(token)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	if _, err := s.store.GetUser(userID); err != nil {
		s.writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	access, refresh, err := s.issueTokenPair(userID)
	if err != nil {
		s.log.Error("token_sign_failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	})
}
