// internal/handlers/router_test.go
package handlers

import (
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monkeytag/relay/internal/config"
	"github.com/monkeytag/relay/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:             3001,
		NameMax:          16,
		LobbyKeyMax:      20,
		LobbyNameMax:     30,
		ChatMax:          200,
		MaxLobbySize:     50,
		LivenessInterval: 20 * time.Second,
		OutboundQueue:    32,
	}
}

func newTestServer(t *testing.T) *RelayServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRelayServer(testConfig(), logger)
}

// connect registers a peer the way the WS handler would, without a socket.
func connect(t *testing.T, rs *RelayServer) *session.Peer {
	t.Helper()
	return rs.Registry.Register(func() {}, rs.Config.OutboundQueue)
}

// disconnect mirrors the handler's exactly-once cleanup path.
func disconnect(rs *RelayServer, p *session.Peer) {
	rs.dropFromLobby(p.Session)
	rs.Registry.Unregister(p.Session.ID)
}

func send(t *testing.T, rs *RelayServer, p *session.Peer, msg string) {
	t.Helper()
	rs.dispatch(p.Session, []byte(msg))
}

// recv drains every queued outbound frame for the peer, decoded as maps.
func recv(t *testing.T, p *session.Peer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case data := <-p.Out():
			var m map[string]any
			require.NoError(t, json.Unmarshal(data, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func ofType(msgs []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, m := range msgs {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func requireOne(t *testing.T, msgs []map[string]any, typ string) map[string]any {
	t.Helper()
	matched := ofType(msgs, typ)
	require.Len(t, matched, 1, "expected exactly one %q message", typ)
	return matched[0]
}

func TestJoinSendsWelcomeAndSnapshot(t *testing.T) {
	rs := newTestServer(t)

	a := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"Jungle","name":"Rex","color":16737792}`)
	msgs := recv(t, a)

	welcome := requireOne(t, msgs, "welcome")
	assert.Equal(t, float64(a.Session.ID), welcome["id"])

	state := requireOne(t, msgs, "state")
	players := state["players"].(map[string]any)
	require.Len(t, players, 1)

	b := connect(t, rs)
	send(t, rs, b, `{"type":"join","lobby":"jungle"}`)

	// B's snapshot contains A; A hears about B.
	state = requireOne(t, recv(t, b), "state")
	players = state["players"].(map[string]any)
	require.Len(t, players, 2)
	rex := players["1"].(map[string]any)
	assert.Equal(t, "Rex", rex["name"])

	join := requireOne(t, recv(t, a), "player_join")
	assert.Equal(t, float64(b.Session.ID), join["id"])
	assert.Equal(t, session.DefaultName, join["name"])
}

func TestJoinNormalizesLobbyKey(t *testing.T) {
	rs := newTestServer(t)

	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"  JUNGLE "}`)
	send(t, rs, b, `{"type":"join","lobby":"jungle"}`)

	l, ok := rs.Lobbies.Get("jungle")
	require.True(t, ok)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 1, rs.Lobbies.Count())
}

func TestJoinClampsName(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle","name":"abcdefghijklmnopqrstuvwxyz"}`)
	assert.Equal(t, "abcdefghijklmnop", a.Session.Name)
}

func TestMoveRelaysExactPose(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle","name":"Rex"}`)
	send(t, rs, b, `{"type":"join","lobby":"jungle"}`)
	recv(t, a)
	recv(t, b)

	send(t, rs, a, `{"type":"move","x":1,"y":2,"z":3,"yaw":0.5}`)

	move := requireOne(t, recv(t, b), "player_move")
	assert.Equal(t, float64(a.Session.ID), move["id"])
	assert.Equal(t, 1.0, move["x"])
	assert.Equal(t, 2.0, move["y"])
	assert.Equal(t, 3.0, move["z"])
	assert.Equal(t, 0.5, move["yaw"])

	assert.Empty(t, recv(t, a), "sender never receives its own move")
}

func TestMoveRetainsOmittedFields(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle"}`)
	send(t, rs, b, `{"type":"join","lobby":"jungle"}`)
	recv(t, b)

	send(t, rs, a, `{"type":"move","x":1,"y":2,"z":3,"yaw":0.25}`)
	send(t, rs, a, `{"type":"move","yaw":0.5}`)

	moves := ofType(recv(t, b), "player_move")
	require.Len(t, moves, 2)
	last := moves[1]
	assert.Equal(t, 1.0, last["x"])
	assert.Equal(t, 2.0, last["y"])
	assert.Equal(t, 3.0, last["z"])
	assert.Equal(t, 0.5, last["yaw"])
}

func TestMoveBeforeJoinIgnored(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	send(t, rs, a, `{"type":"move","x":1}`)
	assert.Empty(t, recv(t, a))
	assert.Zero(t, rs.Lobbies.Count())
}

func TestLobbiesAreIsolated(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle"}`)
	send(t, rs, b, `{"type":"join","lobby":"beach"}`)
	recv(t, a)
	recv(t, b)

	send(t, rs, a, `{"type":"move","x":9}`)
	send(t, rs, a, `{"type":"chat","text":"hi"}`)

	for _, m := range recv(t, b) {
		assert.NotContains(t, []any{"player_move", "chat"}, m["type"],
			"sessions in different lobbies must not observe each other")
	}
}

func TestChatTruncatedAndEchoed(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle","name":"Rex"}`)
	send(t, rs, b, `{"type":"join","lobby":"jungle"}`)
	recv(t, a)
	recv(t, b)

	long := strings.Repeat("a", 300)
	send(t, rs, a, `{"type":"chat","text":"`+long+`"}`)

	chat := requireOne(t, recv(t, b), "chat")
	assert.Equal(t, "Rex", chat["sender"])
	assert.Len(t, chat["text"], 200, "relayed text is truncated to the cap")
	assert.Nil(t, chat["isSelf"])

	echo := requireOne(t, recv(t, a), "chat")
	assert.Equal(t, true, echo["isSelf"])
	assert.Len(t, echo["text"], 200)
}

func TestEmptyChatDropped(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle"}`)
	send(t, rs, b, `{"type":"join","lobby":"jungle"}`)
	recv(t, a)
	recv(t, b)

	send(t, rs, a, `{"type":"chat","text":"   "}`)
	assert.Empty(t, ofType(recv(t, b), "chat"))
	assert.Empty(t, ofType(recv(t, a), "chat"))
}

func TestCosUpdateRelayed(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle"}`)
	send(t, rs, b, `{"type":"join","lobby":"jungle"}`)
	recv(t, a)
	recv(t, b)

	send(t, rs, a, `{"type":"cos","cos":{"hat":"fez"}}`)

	update := requireOne(t, recv(t, b), "cos_update")
	assert.Equal(t, float64(a.Session.ID), update["id"])
	assert.Equal(t, map[string]any{"hat": "fez"}, update["cos"])
	assert.JSONEq(t, `{"hat":"fez"}`, string(a.Session.Cos), "blob replaced wholesale")
}

func TestDisconnectAnnouncesLeave(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle","name":"Rex"}`)
	send(t, rs, b, `{"type":"join","lobby":"jungle"}`)
	recv(t, a)
	recv(t, b)

	disconnect(rs, a)

	leave := requireOne(t, recv(t, b), "player_leave")
	assert.Equal(t, float64(a.Session.ID), leave["id"])
	assert.Equal(t, "Rex", leave["name"])

	// A later joiner never sees the departed session.
	c := connect(t, rs)
	send(t, rs, c, `{"type":"join","lobby":"jungle"}`)
	state := requireOne(t, recv(t, c), "state")
	players := state["players"].(map[string]any)
	require.Len(t, players, 2)
	_, gone := players["1"]
	assert.False(t, gone)
}

func TestRejoinSwitchesLobby(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle"}`)
	send(t, rs, b, `{"type":"join","lobby":"jungle"}`)
	recv(t, a)
	recv(t, b)

	send(t, rs, a, `{"type":"join","lobby":"beach"}`)

	leave := requireOne(t, recv(t, b), "player_leave")
	assert.Equal(t, float64(a.Session.ID), leave["id"])
	assert.Equal(t, "beach", a.Session.LobbyKey)
	assert.Equal(t, 2, rs.Lobbies.Count())
}

func TestCreateLobbyFlow(t *testing.T) {
	rs := newTestServer(t)
	host := connect(t, rs)
	send(t, rs, host, `{"type":"create_lobby","lobbyName":"Tree House","isPrivate":true,"playerName":"Kong"}`)

	joined := requireOne(t, recv(t, host), "lobby_joined")
	code := joined["code"].(string)
	assert.Len(t, code, 6)
	assert.Equal(t, true, joined["isHost"])
	assert.Equal(t, "Tree House", joined["lobbyName"])
	assert.Equal(t, true, joined["isPrivate"])
	assert.Len(t, joined["players"], 1)

	guest := connect(t, rs)
	send(t, rs, guest, `{"type":"join_lobby","code":"`+strings.ToLower(code)+`","playerName":"Bubbles"}`)

	guestMsgs := recv(t, guest)
	joined = requireOne(t, guestMsgs, "lobby_joined")
	assert.Equal(t, code, joined["code"], "code lookup is case-insensitive")
	assert.Equal(t, false, joined["isHost"])
	assert.Len(t, joined["players"], 2)

	hostMsgs := recv(t, host)
	announce := requireOne(t, hostMsgs, "player_joined")
	player := announce["player"].(map[string]any)
	assert.Equal(t, float64(guest.Session.ID), player["id"])
	assert.Equal(t, "Bubbles", player["name"])

	system := requireOne(t, hostMsgs, "chat")
	assert.Equal(t, SystemSender, system["sender"])
	assert.Equal(t, true, system["isSystem"])
}

func TestJoinUnknownCodeYieldsError(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)

	send(t, rs, a, `{"type":"join_lobby","code":"NOPE99","playerName":"Rex"}`)

	errMsg := requireOne(t, recv(t, a), "error")
	assert.Equal(t, "Lobby not found!", errMsg["message"])
	assert.Empty(t, a.Session.LobbyKey)
	assert.Equal(t, session.DefaultName, a.Session.Name, "failed join mutates nothing")
	assert.Zero(t, rs.Lobbies.Count())
}

func TestHostDepartureAnnouncesNewHost(t *testing.T) {
	rs := newTestServer(t)
	host := connect(t, rs)
	send(t, rs, host, `{"type":"create_lobby","lobbyName":"Tree House"}`)
	joined := requireOne(t, recv(t, host), "lobby_joined")
	code := joined["code"].(string)

	guest := connect(t, rs)
	send(t, rs, guest, `{"type":"join_lobby","code":"`+code+`"}`)
	recv(t, guest)

	disconnect(rs, host)

	msgs := recv(t, guest)
	left := requireOne(t, msgs, "player_left")
	assert.Equal(t, float64(host.Session.ID), left["id"])

	newHost := requireOne(t, msgs, "new_host")
	assert.Equal(t, float64(guest.Session.ID), newHost["id"])
	assert.True(t, guest.Session.IsHost)
}

func TestGetLobbiesRepliesToSenderOnly(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)
	b := connect(t, rs)
	send(t, rs, a, `{"type":"join","lobby":"jungle"}`)
	recv(t, a)

	send(t, rs, b, `{"type":"get_lobbies"}`)

	list := requireOne(t, recv(t, b), "lobbies_list")
	lobbies := list["lobbies"].([]any)
	require.Len(t, lobbies, 1)
	entry := lobbies[0].(map[string]any)
	assert.Equal(t, "jungle", entry["code"])
	assert.Equal(t, 1.0, entry["players"])

	assert.Empty(t, recv(t, a), "queries never broadcast")
}

func TestMalformedAndUnknownInputDiscarded(t *testing.T) {
	rs := newTestServer(t)
	a := connect(t, rs)

	send(t, rs, a, `{"type":"join","lobby"`)
	send(t, rs, a, `{"type":"launch_rocket"}`)
	send(t, rs, a, `not json at all`)

	assert.Empty(t, recv(t, a))
	assert.Zero(t, rs.Lobbies.Count())
}
