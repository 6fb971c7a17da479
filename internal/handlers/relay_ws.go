// internal/handlers/relay_ws.go
package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/monkeytag/relay/internal/middleware"
	"github.com/monkeytag/relay/internal/session"
)

// WSHandler upgrades the connection and runs the relay loop: one read pump on
// this goroutine, one write pump goroutine draining the peer's outbound
// queue, and a liveness monitor probing on a fixed interval.
func (s *RelayServer) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		peer := s.Registry.Register(cancel, s.Config.OutboundQueue)
		sess := peer.Session

		middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)
		log := s.Logger.WithFields(logrus.Fields{
			"session": sess.ID,
			"trace":   sess.TraceID,
		})
		log.Info("connection registered")

		// Teardown runs exactly once regardless of which path fires first:
		// read error, liveness expiry, or process shutdown.
		var once sync.Once
		cleanup := func() {
			once.Do(func() {
				s.dropFromLobby(sess)
				s.Registry.Unregister(sess.ID)
				cancel()
				log.Info("connection deallocated")
			})
		}
		defer cleanup()

		var monitor *session.Monitor
		monitor = session.NewMonitor(s.Config.LivenessInterval,
			func() {
				// Ping blocks until the pong arrives, so run it off the
				// monitor goroutine and report the ack on success.
				go func() {
					pctx, pcancel := context.WithTimeout(ctx, s.Config.LivenessInterval)
					defer pcancel()
					if err := c.Ping(pctx); err == nil {
						monitor.Ack()
					}
				}()
			},
			func() {
				log.Warn("liveness probe unanswered, terminating connection")
				c.Close(StatusLivenessTimeout, "liveness timeout")
				cancel()
			},
		)
		go monitor.Run()
		defer monitor.Stop()

		go s.writePump(ctx, c, peer)

		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, err)
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			s.dispatch(sess, data)
		}
	}
}

// writePump drains the peer's outbound queue onto the socket. A failed write
// means the connection is broken; the read pump observes the closure and
// triggers cleanup.
func (s *RelayServer) writePump(ctx context.Context, c *websocket.Conn, peer *session.Peer) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-peer.Out():
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Logger.WithField("session", peer.Session.ID).Warnf("write failed: %v", err)
				return
			}
		}
	}
}
