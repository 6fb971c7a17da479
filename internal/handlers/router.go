// internal/handlers/router.go
package handlers

import (
	"encoding/json"
	"math/rand/v2"
	"strings"

	"github.com/monkeytag/relay/internal/lobby"
	"github.com/monkeytag/relay/internal/protocol"
	"github.com/monkeytag/relay/internal/session"
)

// SystemSender names server-generated chat notices.
const SystemSender = "Server"

// DefaultLobbyName is used when create_lobby omits a display name.
const DefaultLobbyName = "Monkey Lobby"

// dispatch decodes one inbound frame and routes it to its handler. Malformed
// input, unrecognized kinds and operations invalid for the session's current
// state are all discarded silently; the connection stays open.
func (s *RelayServer) dispatch(sess *session.Session, raw []byte) {
	var msg protocol.Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case protocol.TypeJoin:
		s.handleJoin(sess, &msg)
	case protocol.TypeCreateLobby:
		s.handleCreateLobby(sess, &msg)
	case protocol.TypeJoinLobby:
		s.handleJoinLobby(sess, &msg)
	case protocol.TypeMove:
		s.handleMove(sess, &msg)
	case protocol.TypeChat:
		s.handleChat(sess, &msg)
	case protocol.TypeCos:
		s.handleCos(sess, &msg)
	case protocol.TypeGetLobbies:
		s.handleGetLobbies(sess)
	}
}

// applyIdentity picks up name/color/cos fields present on a join-flavored
// message.
func (s *RelayServer) applyIdentity(sess *session.Session, name string, color, cos json.RawMessage) {
	sess.SetName(name, s.Config.NameMax)
	if len(color) > 0 {
		sess.Color = color
	}
	if len(cos) > 0 {
		sess.Cos = cos
	}
}

// handleJoin attaches the session to a named lobby. A re-join while already
// lobby-bound leaves the old lobby first.
func (s *RelayServer) handleJoin(sess *session.Session, msg *protocol.Inbound) {
	s.dropFromLobby(sess)
	s.applyIdentity(sess, msg.Name, msg.Color, msg.Cos)

	key := lobby.NormalizeKey(msg.Lobby, s.Config.LobbyKeyMax)
	l := s.Lobbies.Join(key, sess, session.Pose{})

	s.Caster.Send(sess.ID, protocol.Welcome{Type: protocol.TypeWelcome, ID: sess.ID})
	s.Caster.Send(sess.ID, protocol.State{Type: protocol.TypeState, Players: l.Snapshot()})
	s.Caster.Broadcast(l, protocol.PlayerJoin{
		Type:  protocol.TypePlayerJoin,
		ID:    sess.ID,
		Name:  sess.Name,
		Color: sess.Color,
		Cos:   sess.Cos,
	}, sess.ID)
}

// handleCreateLobby creates a fresh coded lobby with the session as host.
func (s *RelayServer) handleCreateLobby(sess *session.Session, msg *protocol.Inbound) {
	s.dropFromLobby(sess)
	s.applyIdentity(sess, msg.PlayerName, msg.Color, msg.Cos)

	name := msg.LobbyName
	if name == "" {
		name = DefaultLobbyName
	}
	name = session.ClampRunes(name, s.Config.LobbyNameMax)

	l := s.Lobbies.CreateHosted(sess, name, msg.IsPrivate, session.Pose{Y: 1})

	s.Caster.Send(sess.ID, protocol.LobbyJoined{
		Type:      protocol.TypeLobbyJoined,
		Code:      l.Key,
		IsHost:    true,
		Players:   l.PlayerList(),
		LobbyName: l.Name,
		IsPrivate: l.Private,
	})
}

// handleJoinLobby attaches the session to an existing coded lobby. An unknown
// code is the one input error reported back to the sender, and it mutates
// nothing.
func (s *RelayServer) handleJoinLobby(sess *session.Session, msg *protocol.Inbound) {
	code := strings.ToUpper(strings.TrimSpace(msg.Code))
	if _, ok := s.Lobbies.Get(code); !ok {
		s.Caster.Send(sess.ID, protocol.Error{Type: protocol.TypeError, Message: "Lobby not found!"})
		return
	}

	s.dropFromLobby(sess)
	s.applyIdentity(sess, msg.PlayerName, msg.Color, msg.Cos)

	spawn := session.Pose{X: rand.Float64()*4 - 2, Y: 1, Z: rand.Float64()*4 - 2}
	l, ok := s.Lobbies.JoinCode(code, sess, spawn)
	if !ok {
		// The lobby emptied out between the check and the join.
		s.Caster.Send(sess.ID, protocol.Error{Type: protocol.TypeError, Message: "Lobby not found!"})
		return
	}

	l.Mu.Lock()
	isHost := l.HostID == sess.ID
	players := l.PlayerListUnsafe()
	l.Mu.Unlock()

	s.Caster.Send(sess.ID, protocol.LobbyJoined{
		Type:      protocol.TypeLobbyJoined,
		Code:      l.Key,
		IsHost:    isHost,
		Players:   players,
		LobbyName: l.Name,
		IsPrivate: l.Private,
	})
	s.Caster.Broadcast(l, protocol.PlayerJoined{
		Type:   protocol.TypePlayerJoined,
		Player: sess.Info(),
	}, sess.ID)
	s.Caster.Broadcast(l, protocol.Chat{
		Type:     protocol.TypeChat,
		Sender:   SystemSender,
		Text:     sess.Name + " joined!",
		IsSystem: true,
	}, sess.ID)
}

// handleMove updates the pose fields present in the message and relays the
// resulting pose to the rest of the lobby.
func (s *RelayServer) handleMove(sess *session.Session, msg *protocol.Inbound) {
	l, ok := s.memberLobby(sess)
	if !ok {
		return
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if _, member := l.Members[sess.ID]; !member {
		return
	}

	sess.ApplyMove(msg, s.Config.NameMax)
	s.Caster.BroadcastUnsafe(l, protocol.PlayerMove{
		Type:  protocol.TypePlayerMove,
		ID:    sess.ID,
		X:     sess.Pose.X,
		Y:     sess.Pose.Y,
		Z:     sess.Pose.Z,
		Yaw:   sess.Pose.Yaw,
		RX:    sess.Pose.RX,
		RY:    sess.Pose.RY,
		Name:  sess.Name,
		Color: sess.Color,
		Cos:   sess.Cos,
	}, sess.ID)
}

// handleChat relays a capped chat line to the lobby and echoes it to the
// sender flagged as their own.
func (s *RelayServer) handleChat(sess *session.Session, msg *protocol.Inbound) {
	l, ok := s.memberLobby(sess)
	if !ok {
		return
	}

	text := session.ClampRunes(msg.Text, s.Config.ChatMax)
	if strings.TrimSpace(text) == "" {
		return
	}

	out := protocol.Chat{
		Type:   protocol.TypeChat,
		Sender: sess.Name,
		Text:   text,
		Color:  sess.Color,
	}
	s.Caster.Broadcast(l, out, sess.ID)

	out.IsSelf = true
	s.Caster.Send(sess.ID, out)
}

// handleCos replaces the stored customization blob wholesale and relays it.
func (s *RelayServer) handleCos(sess *session.Session, msg *protocol.Inbound) {
	if len(msg.Cos) == 0 {
		return
	}
	l, ok := s.memberLobby(sess)
	if !ok {
		return
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if _, member := l.Members[sess.ID]; !member {
		return
	}

	sess.Cos = msg.Cos
	s.Caster.BroadcastUnsafe(l, protocol.CosUpdate{
		Type: protocol.TypeCosUpdate,
		ID:   sess.ID,
		Cos:  sess.Cos,
	}, sess.ID)
}

// handleGetLobbies replies to the sender only.
func (s *RelayServer) handleGetLobbies(sess *session.Session) {
	s.Caster.Send(sess.ID, protocol.LobbiesList{
		Type:    protocol.TypeLobbiesList,
		Lobbies: s.Lobbies.List(s.Config.MaxLobbySize),
	})
}

// memberLobby resolves the session's current lobby, or reports that the
// session is not lobby-bound.
func (s *RelayServer) memberLobby(sess *session.Session) (*lobby.Lobby, bool) {
	if sess.LobbyKey == "" {
		return nil, false
	}
	return s.Lobbies.Get(sess.LobbyKey)
}

// dropFromLobby removes the session from its current lobby, announcing the
// departure and any host change to the remaining members. Safe to call for a
// lobbyless session.
func (s *RelayServer) dropFromLobby(sess *session.Session) {
	name := sess.Name
	res := s.Lobbies.Leave(sess)
	if !res.WasMember || res.Empty {
		return
	}

	l := res.Lobby
	if l.Hosted {
		s.Caster.Broadcast(l, protocol.PlayerLeave{Type: protocol.TypePlayerLeft, ID: sess.ID}, 0)
		s.Caster.Broadcast(l, protocol.Chat{
			Type:     protocol.TypeChat,
			Sender:   SystemSender,
			Text:     name + " left.",
			IsSystem: true,
		}, 0)
		if res.NewHostID != 0 {
			s.Caster.Broadcast(l, protocol.NewHost{Type: protocol.TypeNewHost, ID: res.NewHostID}, 0)
		}
	} else {
		s.Caster.Broadcast(l, protocol.PlayerLeave{
			Type: protocol.TypePlayerLeave,
			ID:   sess.ID,
			Name: name,
		}, 0)
	}
}
