// Package session tracks live connections: the per-connection Session state,
// the Connection Registry that owns the transport side of each connection, and
// the liveness monitor that reclaims silently dropped peers.
package session

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/monkeytag/relay/internal/protocol"
)

// DefaultName is the placeholder display name for players who never set one.
const DefaultName = "Monkey"

// DefaultColor is the placeholder player color. Colors are opaque to the
// server, so the default is just raw JSON passed through like any other.
var DefaultColor = json.RawMessage(`"#8B4513"`)

// Pose is the last-known position and orientation reported by a player.
// Orientation carries both the single-yaw and the rx/ry convention; a client
// updates whichever fields it uses and the others keep their value.
type Pose struct {
	X, Y, Z float64
	Yaw     float64
	RX, RY  float64
}

// Session is the per-connection player state. Field access is serialized by
// the owning lobby's mutex once the session is lobby-bound; before that only
// the connection's own goroutine touches it.
type Session struct {
	// ID is process-unique, assigned monotonically at connect time and never
	// reused while the process runs.
	ID int64
	// TraceID correlates log lines for one connection.
	TraceID uuid.UUID

	Name  string
	Color json.RawMessage
	Cos   json.RawMessage
	Pose  Pose

	// LobbyKey is the key of the lobby this session belongs to, or "" before
	// the first join. A session belongs to at most one lobby at a time.
	LobbyKey string
	// IsHost is true for at most one member of a hosted lobby.
	IsHost bool
}

// ClampRunes truncates s to at most max runes.
func ClampRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// SetName applies a requested display name, clamping its length. Empty input
// keeps the current name.
func (s *Session) SetName(name string, max int) {
	if name == "" {
		return
	}
	s.Name = ClampRunes(name, max)
}

// ApplyMove updates exactly the pose fields the message supplies. Absent or
// non-numeric fields retain their previous value. An included name or cos
// also updates those.
func (s *Session) ApplyMove(msg *protocol.Inbound, nameMax int) {
	if msg.X.Set {
		s.Pose.X = msg.X.Value
	}
	if msg.Y.Set {
		s.Pose.Y = msg.Y.Value
	}
	if msg.Z.Set {
		s.Pose.Z = msg.Z.Value
	}
	if msg.Yaw.Set {
		s.Pose.Yaw = msg.Yaw.Value
	}
	if msg.RX.Set {
		s.Pose.RX = msg.RX.Value
	}
	if msg.RY.Set {
		s.Pose.RY = msg.RY.Value
	}
	s.SetName(msg.Name, nameMax)
	if len(msg.Cos) > 0 {
		s.Cos = msg.Cos
	}
}

// Info returns the public view of the session for snapshots and announcements.
func (s *Session) Info() protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:    s.ID,
		Name:  s.Name,
		Color: s.Color,
		Cos:   s.Cos,
		X:     s.Pose.X,
		Y:     s.Pose.Y,
		Z:     s.Pose.Z,
		Yaw:   s.Pose.Yaw,
		RX:    s.Pose.RX,
		RY:    s.Pose.RY,
	}
}
