// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/monkeytag/relay/internal/config"
	"github.com/monkeytag/relay/internal/lobby"
	"github.com/monkeytag/relay/internal/middleware"
	"github.com/monkeytag/relay/internal/session"
)

// RelayServer is the high-level struct that holds the connection registry,
// the lobby store and the broadcast engine, and serves both the WebSocket
// relay and its HTTP side-channel.
type RelayServer struct {
	Registry *session.Registry
	Lobbies  *lobby.Store
	Caster   *lobby.Broadcaster
	Config   *config.Config
	Logger   *logrus.Logger
}

// NewRelayServer wires the relay components together.
func NewRelayServer(cfg *config.Config, logger *logrus.Logger) *RelayServer {
	reg := session.NewRegistry()
	return &RelayServer{
		Registry: reg,
		Lobbies:  lobby.NewStore(logger),
		Caster:   lobby.NewBroadcaster(reg, logger),
		Config:   cfg,
		Logger:   logger,
	}
}

// Routes builds the HTTP handler: the relay websocket plus the health and
// discovery endpoints, wrapped in request logging.
func (s *RelayServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.PingHandler)
	mux.HandleFunc("/health", s.HealthHandler)
	mux.HandleFunc("/lobbies", s.LobbiesHandler)
	mux.Handle("/ws", s.WSHandler())
	return middleware.LogMiddleware(s.Logger)(mux)
}

func allowCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// PingHandler answers a plaintext liveness banner on the root path.
func (s *RelayServer) PingHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		allowCORS(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Not found"})
		return
	}
	allowCORS(w)
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("Monkey Tag relay running"))
}

// HealthHandler reports server status and the live lobby count as JSON.
func (s *RelayServer) HealthHandler(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"lobbies": s.Lobbies.Count(),
	})
}

// LobbiesHandler lists public lobbies with member counts as JSON.
func (s *RelayServer) LobbiesHandler(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Lobbies.List(s.Config.MaxLobbySize))
}
