package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Peer pairs a Session with the outbound side of its connection. The registry
// owns the transport handle; lobbies hold only sessions and resolve
// writability through the registry when they need to send.
type Peer struct {
	Session *Session

	out    chan []byte
	cancel context.CancelFunc
}

// Out is drained by the connection's write pump.
func (p *Peer) Out() <-chan []byte {
	return p.out
}

// send queues data without blocking. Returns false if the peer's queue is
// full, in which case the message is simply dropped for this peer.
func (p *Peer) send(data []byte) bool {
	select {
	case p.out <- data:
		return true
	default:
		return false
	}
}

// Registry is the process-wide connection registry. It allocates session ids
// and maps them to live peers.
type Registry struct {
	nextID atomic.Int64

	mu    sync.Mutex
	peers map[int64]*Peer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[int64]*Peer),
	}
}

// Register allocates the next session id and tracks a new peer. cancel tears
// down the connection's goroutines; queue is the outbound buffer depth.
func (r *Registry) Register(cancel context.CancelFunc, queue int) *Peer {
	id := r.nextID.Add(1)
	peer := &Peer{
		Session: &Session{
			ID:      id,
			TraceID: uuid.New(),
			Name:    DefaultName,
			Color:   DefaultColor,
		},
		out:    make(chan []byte, queue),
		cancel: cancel,
	}

	r.mu.Lock()
	r.peers[id] = peer
	r.mu.Unlock()
	return peer
}

// Lookup returns the peer for a session id, if still registered.
func (r *Registry) Lookup(id int64) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	return p, ok
}

// Unregister removes a peer. The id is never reissued.
func (r *Registry) Unregister(id int64) {
	r.mu.Lock()
	delete(r.peers, id)
	r.mu.Unlock()
}

// Deliver queues payload for the given session without blocking. Returns
// false if the session is gone or its queue is full; callers treat both as a
// dropped delivery, never an error.
func (r *Registry) Deliver(id int64, payload []byte) bool {
	p, ok := r.Lookup(id)
	if !ok {
		return false
	}
	return p.send(payload)
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// CloseAll cancels every live connection. Used during process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.Unlock()

	for _, p := range peers {
		if p.cancel != nil {
			p.cancel()
		}
	}
}
