// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the relay handlers. These provide more
// specific reasons for closure than standard codes.
const (
	StatusLivenessTimeout websocket.StatusCode = 4000 // Peer stopped answering liveness probes.
	StatusServerShutdown  websocket.StatusCode = 4001 // Process received a termination signal.
)
