package store

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vhp90/esports-team-finder/internal/model"
)

const (
	chatKeyPrefix = "chat:"
	msgKeyPrefix  = "msg:"
)

// msgKey builds a message key that sorts by append time within a chat. The
// atomic sequence breaks ties between messages sharing a nanosecond.
func (s *Store) msgKey(chatID string, ts time.Time) string {
	seq := atomic.AddUint64(&s.seq, 1)
	return fmt.Sprintf("%s%s:%020d-%06d", msgKeyPrefix, chatID, ts.UnixNano(), seq)
}

// CreateChat stores a new chat. The creator is added to the participant list
// if absent, mirroring the REST contract.
func (s *Store) CreateChat(c *model.Chat, creatorID string) error {
	if !c.HasParticipant(creatorID) {
		c.Participants = append(c.Participants, creatorID)
	}
	if c.Kind == "" {
		c.Kind = model.ChatKindDirect
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	if err := s.set(chatKeyPrefix+c.ID, c); err != nil {
		return err
	}
	s.log.Info("chat_created", zap.String("chat_id", c.ID), zap.Int("participants", len(c.Participants)))
	return nil
}

// GetChat returns the chat with the given id.
func (s *Store) GetChat(id string) (*model.Chat, error) {
	var c model.Chat
	if err := s.get(chatKeyPrefix+id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChatsForUser returns every chat the user participates in, each with its
// most recent message attached when one exists.
func (s *Store) ListChatsForUser(userID string) ([]*model.Chat, error) {
	iter, err := s.prefixIter(chatKeyPrefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*model.Chat
	for iter.First(); iter.Valid(); iter.Next() {
		var c model.Chat
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			return nil, err
		}
		if !c.HasParticipant(userID) {
			continue
		}
		last, err := s.lastMessage(c.ID)
		if err != nil {
			return nil, err
		}
		c.LastMessage = last
		out = append(out, &c)
	}
	return out, iter.Error()
}

// AppendMessage persists a message to the chat's log. The timestamp is
// assigned here, at persistence time, and is authoritative for history order.
func (s *Store) AppendMessage(chatID, senderID, content string) (*model.Message, error) {
	msg := &model.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Content:   content,
		ChatID:    chatID,
		CreatedAt: time.Now().UTC(),
	}
	key := s.msgKey(chatID, msg.CreatedAt)
	if err := s.set(key, msg); err != nil {
		s.log.Error("message_append_failed", zap.String("chat_id", chatID), zap.Error(err))
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the chat's messages in append order. A limit of zero
// or less returns all of them.
func (s *Store) ListMessages(chatID string, limit int) ([]*model.Message, error) {
	iter, err := s.prefixIter(msgKeyPrefix + chatID + ":")
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*model.Message
	for iter.First(); iter.Valid(); iter.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var m model.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, iter.Error()
}

// lastMessage returns the newest message in the chat, or nil when the chat
// has no messages yet.
func (s *Store) lastMessage(chatID string) (*model.Message, error) {
	iter, err := s.prefixIter(msgKeyPrefix + chatID + ":")
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, iter.Error()
	}
	var m model.Message
	if err := json.Unmarshal(iter.Value(), &m); err != nil {
		return nil, err
	}
	return &m, nil
}
