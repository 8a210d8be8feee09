package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vhp90/esports-team-finder/internal/model"
)

var (
	// ErrUsernameTaken is returned when registering with an existing username.
	ErrUsernameTaken = errors.New("store: username already taken")
	// ErrEmailTaken is returned when registering with an existing email.
	ErrEmailTaken = errors.New("store: email already registered")
)

const (
	userKeyPrefix    = "user:"
	usernameIdxKey   = "username:"
	userEmailIdxKey  = "useremail:"
	userMatchMaximum = 10
)

// CreateUser stores a new user, enforcing unique username and email. The
// user's ID and CreatedAt are assigned here. Registration is serialized so
// two concurrent attempts cannot both pass the uniqueness checks.
func (s *Store) CreateUser(u *model.User) error {
	s.regMu.Lock()
	defer s.regMu.Unlock()

	if taken, err := s.exists(usernameIdxKey + u.Username); err != nil {
		return err
	} else if taken {
		return ErrUsernameTaken
	}
	if taken, err := s.exists(userEmailIdxKey + u.Email); err != nil {
		return err
	} else if taken {
		return ErrEmailTaken
	}

	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()

	if err := s.set(userKeyPrefix+u.ID, u); err != nil {
		return err
	}
	if err := s.set(usernameIdxKey+u.Username, u.ID); err != nil {
		return err
	}
	if err := s.set(userEmailIdxKey+u.Email, u.ID); err != nil {
		return err
	}
	s.log.Info("user_created", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return nil
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(id string) (*model.User, error) {
	var u model.User
	if err := s.get(userKeyPrefix+id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername returns the user registered under the given username.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	var id string
	if err := s.get(usernameIdxKey+username, &id); err != nil {
		return nil, err
	}
	return s.GetUser(id)
}

// GetUserByEmail returns the user registered under the given email.
func (s *Store) GetUserByEmail(email string) (*model.User, error) {
	var id string
	if err := s.get(userEmailIdxKey+email, &id); err != nil {
		return nil, err
	}
	return s.GetUser(id)
}

// MatchUsers returns up to ten users, other than excludeID, who play the
// given game at the given skill level.
func (s *Store) MatchUsers(game, skillLevel, excludeID string) ([]*model.User, error) {
	iter, err := s.prefixIter(userKeyPrefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*model.User
	for iter.First(); iter.Valid() && len(out) < userMatchMaximum; iter.Next() {
		var u model.User
		if err := json.Unmarshal(iter.Value(), &u); err != nil {
			return nil, err
		}
		if u.ID == excludeID || u.SkillLevel != skillLevel {
			continue
		}
		for _, g := range u.Games {
			if g == game {
				out = append(out, &u)
				break
			}
		}
	}
	return out, iter.Error()
}
