package lobby

import (
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/monkeytag/relay/internal/protocol"
	"github.com/monkeytag/relay/internal/session"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// codeLength is the length of generated lobby codes.
const codeLength = 6

// DefaultLobbyKey is where a join with no lobby field lands.
const DefaultLobbyKey = "public"

// LeaveResult describes what a departure changed, so the caller can announce
// it to the remaining members.
type LeaveResult struct {
	Lobby     *Lobby
	WasMember bool
	// Empty reports that the lobby was deleted because the departing session
	// was its last member.
	Empty bool
	// NewHostID is the promoted member's id when the departing session was
	// host and members remain, else 0.
	NewHostID int64
}

// Store is the process-wide mapping from lobby key to Lobby. Membership
// changes hold the store mutex (then the lobby mutex) so create-on-first-join
// and delete-on-empty are atomic with respect to each other; per-member
// traffic inside one lobby only contends on that lobby's mutex.
type Store struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby
	logger  *logrus.Logger
}

// NewStore returns an empty Store.
func NewStore(logger *logrus.Logger) *Store {
	return &Store{
		lobbies: make(map[string]*Lobby),
		logger:  logger,
	}
}

// NormalizeKey lowercases, trims and length-caps a free-text lobby name.
// Keys differing only in case or in characters beyond the cap collide into
// one lobby. Empty input maps to the default public lobby.
func NormalizeKey(key string, max int) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = session.ClampRunes(key, max)
	if key == "" {
		return DefaultLobbyKey
	}
	return key
}

// newCode generates a random lobby code. Uniqueness against live lobbies is
// the caller's job.
func newCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}

// Get returns the lobby for key, if present.
func (s *Store) Get(key string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[key]
	return l, ok
}

// Count reports the number of live lobbies.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobbies)
}

// Join inserts sess into the named lobby for key (normalized by the caller),
// creating the lobby if it does not exist, and seeds the session's pose.
func (s *Store) Join(key string, sess *session.Session, pose session.Pose) *Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lobbies[key]
	if !ok {
		l = &Lobby{
			Key:     key,
			Members: make(map[int64]*session.Session),
		}
		s.lobbies[key] = l
		s.logger.WithField("lobby", key).Info("lobby created")
	}
	s.addMemberLocked(l, sess, pose)
	return l
}

// CreateHosted creates a new coded lobby with sess as its host and first
// member.
func (s *Store) CreateHosted(sess *session.Session, name string, private bool, pose session.Pose) *Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := newCode()
	for _, taken := s.lobbies[code]; taken; _, taken = s.lobbies[code] {
		code = newCode()
	}

	l := &Lobby{
		Key:     code,
		Name:    name,
		Private: private,
		Hosted:  true,
		Members: make(map[int64]*session.Session),
	}
	s.lobbies[code] = l
	s.logger.WithFields(logrus.Fields{
		"lobby":   code,
		"name":    name,
		"private": private,
	}).Info("lobby created")

	s.addMemberLocked(l, sess, pose)
	return l
}

// JoinCode inserts sess into the coded lobby, or reports that the code is
// unknown without mutating anything.
func (s *Store) JoinCode(code string, sess *session.Session, pose session.Pose) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lobbies[code]
	if !ok {
		return nil, false
	}
	s.addMemberLocked(l, sess, pose)
	return l, true
}

// addMemberLocked binds sess to l. Assumes the store mutex is held.
func (s *Store) addMemberLocked(l *Lobby, sess *session.Session, pose session.Pose) {
	l.Mu.Lock()
	defer l.Mu.Unlock()

	l.Members[sess.ID] = sess
	sess.LobbyKey = l.Key
	sess.Pose = pose
	sess.IsHost = false
	if l.Hosted && l.HostID == 0 {
		l.HostID = sess.ID
		sess.IsHost = true
	}

	s.logger.WithFields(logrus.Fields{
		"lobby":   l.Key,
		"session": sess.ID,
		"player":  sess.Name,
		"members": len(l.Members),
	}).Info("player joined")
}

// Leave removes sess from its lobby. If the lobby becomes empty it is deleted
// from the store in the same critical section; if the departing session was
// host and members remain, the member with the lowest id is promoted.
func (s *Store) Leave(sess *session.Session) LeaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sess.LobbyKey
	if key == "" {
		return LeaveResult{}
	}
	sess.LobbyKey = ""
	sess.IsHost = false

	l, ok := s.lobbies[key]
	if !ok {
		return LeaveResult{}
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()

	if _, member := l.Members[sess.ID]; !member {
		return LeaveResult{Lobby: l}
	}
	delete(l.Members, sess.ID)
	wasHost := l.Hosted && l.HostID == sess.ID

	res := LeaveResult{Lobby: l, WasMember: true}
	if len(l.Members) == 0 {
		delete(s.lobbies, key)
		res.Empty = true
		s.logger.WithField("lobby", key).Info("lobby deleted")
		return res
	}

	if wasHost {
		// Promotion order is unspecified by contract; lowest id keeps it
		// deterministic.
		var next int64
		for id := range l.Members {
			if next == 0 || id < next {
				next = id
			}
		}
		l.HostID = next
		l.Members[next].IsHost = true
		res.NewHostID = next
		s.logger.WithFields(logrus.Fields{
			"lobby": key,
			"host":  next,
		}).Info("host reassigned")
	}
	return res
}

// List returns the public lobbies with member counts, sorted by key.
func (s *Store) List(maxPlayers int) []protocol.LobbySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.LobbySummary, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		if l.Private {
			continue
		}
		out = append(out, protocol.LobbySummary{
			Code:       l.Key,
			Name:       l.DisplayName(),
			Players:    l.Len(),
			MaxPlayers: maxPlayers,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
