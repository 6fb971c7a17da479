package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Monitor is a per-connection liveness watchdog. On each interval tick it
// checks whether any acknowledgment arrived since the previous probe: if not,
// the connection is declared dead and expire runs once; otherwise the flag is
// cleared and a fresh probe is sent. Peers behind idle-killing intermediaries
// that drop the path without a close handshake are reclaimed within two
// intervals.
type Monitor struct {
	interval time.Duration
	probe    func()
	expire   func()

	alive    atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMonitor builds a Monitor. probe must not block (fire the real probe on a
// separate goroutine and call Ack when it is answered); expire is invoked at
// most once, from the monitor's own goroutine.
func NewMonitor(interval time.Duration, probe, expire func()) *Monitor {
	m := &Monitor{
		interval: interval,
		probe:    probe,
		expire:   expire,
		stop:     make(chan struct{}),
	}
	m.alive.Store(true)
	return m
}

// Ack records that the peer answered a probe (or showed any other sign of
// life) since the last tick.
func (m *Monitor) Ack() {
	m.alive.Store(true)
}

// Run drives the probe loop until Stop is called or the connection expires.
// Call it on its own goroutine.
func (m *Monitor) Run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if !m.alive.Swap(false) {
				m.expire()
				return
			}
			m.probe()
		}
	}
}

// Stop terminates the monitor without expiring the connection. Safe to call
// multiple times and in any order with respect to connection teardown.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}
