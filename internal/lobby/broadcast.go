package lobby

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Delivery resolves a session id to its writable connection. The registry
// implements it; lobbies never hold transport handles themselves.
type Delivery interface {
	// Deliver queues payload for the session without blocking. False means
	// the message was dropped for that peer (gone, or queue full).
	Deliver(sessionID int64, payload []byte) bool
}

// Broadcaster is the fan-out engine: it serializes a payload once and hands
// it to every targeted member's connection. Per-recipient failures are
// dropped silently and never abort delivery to the rest.
type Broadcaster struct {
	delivery Delivery
	logger   *logrus.Logger
}

// NewBroadcaster wires the engine to a Delivery (normally the registry).
func NewBroadcaster(d Delivery, logger *logrus.Logger) *Broadcaster {
	return &Broadcaster{delivery: d, logger: logger}
}

// BroadcastUnsafe sends msg to every member of l except excludeID (0 = no
// exclusion). Assumes l.Mu is held, so membership cannot change mid-fanout.
func (b *Broadcaster) BroadcastUnsafe(l *Lobby, msg any, excludeID int64) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.WithError(err).Warn("broadcast marshal failed")
		return
	}
	for id := range l.Members {
		if id == excludeID {
			continue
		}
		if !b.delivery.Deliver(id, data) {
			b.logger.WithFields(logrus.Fields{
				"lobby":   l.Key,
				"session": id,
			}).Debug("dropped broadcast for unwritable peer")
		}
	}
}

// Broadcast sends msg to every member of l except excludeID.
func (b *Broadcaster) Broadcast(l *Lobby, msg any, excludeID int64) {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	b.BroadcastUnsafe(l, msg, excludeID)
}

// Send delivers msg to a single session. Failures are dropped like any other.
func (b *Broadcaster) Send(sessionID int64, msg any) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.WithError(err).Warn("send marshal failed")
		return false
	}
	return b.delivery.Deliver(sessionID, data)
}
