// Package lobby groups sessions into named or coded lobbies and fans relay
// payloads out to their members.
package lobby

import (
	"sort"
	"strconv"
	"sync"

	"github.com/monkeytag/relay/internal/protocol"
	"github.com/monkeytag/relay/internal/session"
)

// Lobby is one group of players relaying to each other. A Lobby exists in the
// Store iff it has at least one member: it is created on first join and
// deleted synchronously when the last member departs.
type Lobby struct {
	// Key identifies the lobby in the store: a normalized free-text name for
	// named lobbies, or a generated uppercase code for created ones.
	Key string
	// Name is the display name for created lobbies; named lobbies use Key.
	Name string
	// Private lobbies are excluded from discovery listings.
	Private bool
	// Hosted enables the host model (created lobbies only).
	Hosted bool
	// HostID is the current host's session id, or 0 when Hosted is false.
	// If set it always refers to a present member.
	HostID int64

	// Mu serializes all membership and member-session mutation, and any
	// broadcast iterating Members. Callers of *Unsafe methods must hold it.
	Mu sync.Mutex

	// Members maps session id to session. Insertion order is irrelevant.
	Members map[int64]*session.Session
}

// DisplayName returns the name shown in listings.
func (l *Lobby) DisplayName() string {
	if l.Name != "" {
		return l.Name
	}
	return l.Key
}

// LenUnsafe reports the member count. Assumes Mu is held.
func (l *Lobby) LenUnsafe() int {
	return len(l.Members)
}

// Len reports the member count.
func (l *Lobby) Len() int {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return len(l.Members)
}

// SnapshotUnsafe returns the public state of every member keyed by decimal
// session id. Assumes Mu is held.
func (l *Lobby) SnapshotUnsafe() map[string]protocol.PlayerInfo {
	players := make(map[string]protocol.PlayerInfo, len(l.Members))
	for id, sess := range l.Members {
		players[strconv.FormatInt(id, 10)] = sess.Info()
	}
	return players
}

// Snapshot returns an atomically consistent view of the current membership,
// used to seed a newly joined client.
func (l *Lobby) Snapshot() map[string]protocol.PlayerInfo {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.SnapshotUnsafe()
}

// PlayerListUnsafe returns the members as a list sorted by session id.
// Assumes Mu is held.
func (l *Lobby) PlayerListUnsafe() []protocol.PlayerInfo {
	list := make([]protocol.PlayerInfo, 0, len(l.Members))
	for _, sess := range l.Members {
		list = append(list, sess.Info())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// PlayerList returns the members as a list sorted by session id.
func (l *Lobby) PlayerList() []protocol.PlayerInfo {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.PlayerListUnsafe()
}

// MemberIDsUnsafe returns the current member ids. Assumes Mu is held.
func (l *Lobby) MemberIDsUnsafe() []int64 {
	ids := make([]int64, 0, len(l.Members))
	for id := range l.Members {
		ids = append(ids, id)
	}
	return ids
}
