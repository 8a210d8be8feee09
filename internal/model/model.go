// Package model defines the documents stored by the team finder backend and
// the JSON shapes exchanged with clients.
package model

import "time"

// User is a registered player profile. The password hash is stored alongside
// the document but never serialized into API responses; handlers expose the
// Profile view instead.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password,omitempty"`
	Games        []string  `json:"games"`
	SkillLevel   string    `json:"skill_level"`
	PlayStyle    string    `json:"play_style"`
	Availability []string  `json:"availability"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserProfile is the public view of a user.
type UserProfile struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Games        []string `json:"games"`
	SkillLevel   string   `json:"skill_level"`
	PlayStyle    string   `json:"play_style"`
	Availability []string `json:"availability"`
}

// Profile returns the public view of the user.
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Games:        u.Games,
		SkillLevel:   u.SkillLevel,
		PlayStyle:    u.PlayStyle,
		Availability: u.Availability,
	}
}

// Team is a recruiting roster for one game.
type Team struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Game         string    `json:"game"`
	Description  string    `json:"description"`
	SkillLevel   string    `json:"skill_level"`
	Requirements string    `json:"requirements"`
	MaxMembers   int       `json:"max_members"`
	LeaderID     string    `json:"leader_id"`
	Members      []string  `json:"members"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasMember reports whether the user is on the team roster.
func (t *Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Chat kinds.
const (
	ChatKindDirect = "direct"
	ChatKindTeam   = "team"
)

// Chat is a room with a fixed participant list. Membership is edited through
// the REST layer only; the live chat subsystem treats it as read-only.
type Chat struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Participants []string  `json:"participants"`
	Kind         string    `json:"type"`
	TeamID       string    `json:"team_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastMessage  *Message  `json:"last_message,omitempty"`
}

// HasParticipant reports whether the user may read and post in this chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is one persisted chat message. CreatedAt is assigned at persistence
// time and is the authoritative ordering for history.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification kinds.
const (
	NotificationTeamInvite      = "team_invite"
	NotificationTeamRequest     = "team_request"
	NotificationSimilarInterest = "similar_interest"
)

// Notification is a one-way alert delivered to a single recipient.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	TeamID      string    `json:"team_id,omitempty"`
	SenderID    string    `json:"sender_id,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
