// Package protocol defines the JSON message shapes exchanged over the relay
// websocket. One message per frame, UTF-8 text, no additional framing.
package protocol

import (
	"encoding/json"
)

// Inbound message types.
const (
	TypeJoin        = "join"
	TypeCreateLobby = "create_lobby"
	TypeJoinLobby   = "join_lobby"
	TypeMove        = "move"
	TypeChat        = "chat"
	TypeCos         = "cos"
	TypeGetLobbies  = "get_lobbies"
)

// Outbound message types.
const (
	TypeWelcome      = "welcome"
	TypeState        = "state"
	TypeLobbyJoined  = "lobby_joined"
	TypePlayerJoin   = "player_join"
	TypePlayerJoined = "player_joined"
	TypePlayerMove   = "player_move"
	TypePlayerLeave  = "player_leave"
	TypePlayerLeft   = "player_left"
	TypeCosUpdate    = "cos_update"
	TypeNewHost      = "new_host"
	TypeLobbiesList  = "lobbies_list"
	TypeError        = "error"
)

// OptFloat is a JSON number that records whether a usable value arrived.
// Absent fields, nulls, strings and anything else non-numeric decode as
// "not set" instead of failing the enclosing message, so a client sending a
// partial or sloppy move update never loses the whole packet.
type OptFloat struct {
	Value float64
	Set   bool
}

// UnmarshalJSON never returns an error; unusable input leaves the field unset.
func (f *OptFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	f.Value = v
	f.Set = true
	return nil
}

// Inbound is the union of all client-to-server message shapes. Which fields
// are meaningful depends on Type; extra fields are ignored.
type Inbound struct {
	Type string `json:"type"`

	// join
	Lobby string          `json:"lobby"`
	Name  string          `json:"name"`
	Color json.RawMessage `json:"color"`
	Cos   json.RawMessage `json:"cos"`

	// create_lobby / join_lobby
	LobbyName  string `json:"lobbyName"`
	IsPrivate  bool   `json:"isPrivate"`
	PlayerName string `json:"playerName"`
	Code       string `json:"code"`

	// move
	X   OptFloat `json:"x"`
	Y   OptFloat `json:"y"`
	Z   OptFloat `json:"z"`
	Yaw OptFloat `json:"yaw"`
	RX  OptFloat `json:"rx"`
	RY  OptFloat `json:"ry"`

	// chat
	Text string `json:"text"`
}

// PlayerInfo is the public view of a session, used in snapshots, lobby player
// lists and join announcements.
type PlayerInfo struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Color json.RawMessage `json:"color,omitempty"`
	Cos   json.RawMessage `json:"cos,omitempty"`
	X     float64         `json:"x"`
	Y     float64         `json:"y"`
	Z     float64         `json:"z"`
	Yaw   float64         `json:"yaw"`
	RX    float64         `json:"rx"`
	RY    float64         `json:"ry"`
}

// Welcome assigns the session id to a freshly joined client.
type Welcome struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// State seeds a newly joined client with the full lobby membership,
// keyed by decimal session id.
type State struct {
	Type    string                `json:"type"`
	Players map[string]PlayerInfo `json:"players"`
}

// LobbyJoined confirms a create_lobby/join_lobby to the requesting client.
type LobbyJoined struct {
	Type      string       `json:"type"`
	Code      string       `json:"code"`
	IsHost    bool         `json:"isHost"`
	Players   []PlayerInfo `json:"players"`
	LobbyName string       `json:"lobbyName"`
	IsPrivate bool         `json:"isPrivate"`
}

// PlayerJoin announces a new member to the rest of a named lobby.
type PlayerJoin struct {
	Type  string          `json:"type"`
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Color json.RawMessage `json:"color,omitempty"`
	Cos   json.RawMessage `json:"cos,omitempty"`
}

// PlayerJoined announces a new member to the rest of a coded lobby.
type PlayerJoined struct {
	Type   string     `json:"type"`
	Player PlayerInfo `json:"player"`
}

// PlayerMove relays a member's updated pose.
type PlayerMove struct {
	Type  string          `json:"type"`
	ID    int64           `json:"id"`
	X     float64         `json:"x"`
	Y     float64         `json:"y"`
	Z     float64         `json:"z"`
	Yaw   float64         `json:"yaw"`
	RX    float64         `json:"rx"`
	RY    float64         `json:"ry"`
	Name  string          `json:"name"`
	Color json.RawMessage `json:"color,omitempty"`
	Cos   json.RawMessage `json:"cos,omitempty"`
}

// PlayerLeave announces a departed member.
type PlayerLeave struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// Chat relays a chat line. IsSelf marks the echo copy sent back to the sender;
// IsSystem marks server-generated notices.
type Chat struct {
	Type     string          `json:"type"`
	Sender   string          `json:"sender"`
	Text     string          `json:"text"`
	Color    json.RawMessage `json:"color,omitempty"`
	IsSystem bool            `json:"isSystem,omitempty"`
	IsSelf   bool            `json:"isSelf,omitempty"`
}

// CosUpdate relays a wholesale appearance replacement.
type CosUpdate struct {
	Type string          `json:"type"`
	ID   int64           `json:"id"`
	Cos  json.RawMessage `json:"cos"`
}

// NewHost announces host reassignment after the previous host departed.
type NewHost struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// LobbySummary is one entry in a public lobby listing.
type LobbySummary struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
}

// LobbiesList replies to a get_lobbies query.
type LobbiesList struct {
	Type    string         `json:"type"`
	Lobbies []LobbySummary `json:"lobbies"`
}

// Error reports a failed explicit operation (e.g. joining an unknown code).
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
