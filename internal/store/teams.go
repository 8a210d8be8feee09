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
	// ErrAlreadyMember is returned when joining a team twice.
	ErrAlreadyMember = errors.New("store: already a member of this team")
	// ErrTeamFull is returned when a team has reached max_members.
	ErrTeamFull = errors.New("store: team is full")
	// ErrNotMember is returned when leaving a team the user is not on.
	ErrNotMember = errors.New("store: not a member of this team")
	// ErrLeaderCannotLeave is returned when the leader tries to leave without
	// transferring leadership.
	ErrLeaderCannotLeave = errors.New("store: team leader cannot leave")
)

const (
	teamKeyPrefix = "team:"
	teamListLimit = 50
)

// CreateTeam stores a new team led by leaderID, who becomes its first member.
func (s *Store) CreateTeam(t *model.Team, leaderID string) error {
	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.LeaderID = leaderID
	t.Members = []string{leaderID}
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.MaxMembers <= 0 {
		t.MaxMembers = 5
	}
	if err := s.set(teamKeyPrefix+t.ID, t); err != nil {
		return err
	}
	s.log.Info("team_created", zap.String("team_id", t.ID), zap.String("leader_id", leaderID))
	return nil
}

// GetTeam returns the team with the given id.
func (s *Store) GetTeam(id string) (*model.Team, error) {
	var t model.Team
	if err := s.get(teamKeyPrefix+id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTeams returns up to fifty teams, optionally filtered by game and skill
// level.
func (s *Store) ListTeams(game, skillLevel string) ([]*model.Team, error) {
	iter, err := s.prefixIter(teamKeyPrefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*model.Team
	for iter.First(); iter.Valid() && len(out) < teamListLimit; iter.Next() {
		var t model.Team
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return nil, err
		}
		if game != "" && t.Game != game {
			continue
		}
		if skillLevel != "" && t.SkillLevel != skillLevel {
			continue
		}
		out = append(out, &t)
	}
	return out, iter.Error()
}

// UpdateTeam overwrites the stored team document, refreshing UpdatedAt.
func (s *Store) UpdateTeam(t *model.Team) error {
	t.UpdatedAt = time.Now().UTC()
	return s.set(teamKeyPrefix+t.ID, t)
}

// DeleteTeam removes the team with the given id.
func (s *Store) DeleteTeam(id string) error {
	if _, err := s.GetTeam(id); err != nil {
		return err
	}
	return s.delete(teamKeyPrefix + id)
}

// JoinTeam adds userID to the team roster.
func (s *Store) JoinTeam(teamID, userID string) (*model.Team, error) {
	t, err := s.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	if t.HasMember(userID) {
		return nil, ErrAlreadyMember
	}
	if len(t.Members) >= t.MaxMembers {
		return nil, ErrTeamFull
	}
	t.Members = append(t.Members, userID)
	if err := s.UpdateTeam(t); err != nil {
		return nil, err
	}
	return t, nil
}

// LeaveTeam removes userID from the team roster. The leader must transfer
// leadership before leaving.
func (s *Store) LeaveTeam(teamID, userID string) (*model.Team, error) {
	t, err := s.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	if !t.HasMember(userID) {
		return nil, ErrNotMember
	}
	if t.LeaderID == userID {
		return nil, ErrLeaderCannotLeave
	}
	members := make([]string, 0, len(t.Members)-1)
	for _, m := range t.Members {
		if m != userID {
			members = append(members, m)
		}
	}
	t.Members = members
	if err := s.UpdateTeam(t); err != nil {
		return nil, err
	}
	return t, nil
}
