package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vhp90/esports-team-finder/internal/model"
)

const notifKeyPrefix = "notif:"

// CreateNotification stores a notification for its recipient.
func (s *Store) CreateNotification(n *model.Notification) error {
	n.ID = uuid.NewString()
	n.Read = false
	n.CreatedAt = time.Now().UTC()
	return s.set(notifKeyPrefix+n.RecipientID+":"+n.ID, n)
}

// ListNotificationsForUser returns every notification addressed to the user.
func (s *Store) ListNotificationsForUser(recipientID string) ([]*model.Notification, error) {
	iter, err := s.prefixIter(notifKeyPrefix + recipientID + ":")
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*model.Notification
	for iter.First(); iter.Valid(); iter.Next() {
		var n model.Notification
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, iter.Error()
}

// MarkNotificationRead marks the recipient's notification as read. It returns
// ErrNotFound when the notification does not exist or belongs to someone else.
func (s *Store) MarkNotificationRead(recipientID, notificationID string) error {
	key := notifKeyPrefix + recipientID + ":" + notificationID
	var n model.Notification
	if err := s.get(key, &n); err != nil {
		return err
	}
	n.Read = true
	return s.set(key, &n)
}
