package chat

import (
	"go.uber.org/zap"

	"github.com/vhp90/esports-team-finder/internal/metrics"
)

// Fanout delivers a persisted message to every live connection in a room
// except the originating sender. Delivery is at-most-once with no buffering:
// a participant who is not registered at delivery time reads the message from
// history instead.
type Fanout struct {
	registry *Registry
	log      *zap.Logger
}

// NewFanout creates a fan-out engine over the given registry.
func NewFanout(registry *Registry, log *zap.Logger) *Fanout {
	return &Fanout{registry: registry, log: log}
}

// Deliver sends payload to every connection registered in the room except
// those belonging to senderID, so a sender never hears its own message back
// on any of its sockets. An empty senderID delivers to everyone. Each send is
// independent: a failed recipient is deregistered and its transport closed
// asynchronously, and the failure never propagates to the caller or blocks
// the remaining recipients.
func (f *Fanout) Deliver(chatID string, payload []byte, senderID string) {
	for _, conn := range f.registry.Snapshot(chatID) {
		if senderID != "" && conn.UserID() == senderID {
			continue
		}
		if err := conn.TrySend(payload); err != nil {
			f.log.Warn("delivery_failed",
				zap.String("chat_id", chatID),
				zap.Error(err),
			)
			f.registry.Deregister(chatID, conn)
			go conn.Kill()
			metrics.DeliveryFailures.Inc()
			continue
		}
		metrics.DeliveriesTotal.Inc()
	}
}
