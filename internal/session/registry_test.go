package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsMonotonicIDs(t *testing.T) {
	r := NewRegistry()

	a := r.Register(nil, 4)
	b := r.Register(nil, 4)
	c := r.Register(nil, 4)

	assert.Equal(t, int64(1), a.Session.ID)
	assert.Equal(t, int64(2), b.Session.ID)
	assert.Equal(t, int64(3), c.Session.ID)

	// Ids are never reused, even after the earlier connection is gone.
	r.Unregister(a.Session.ID)
	d := r.Register(nil, 4)
	assert.Equal(t, int64(4), d.Session.ID)
}

func TestRegisterSeedsDefaults(t *testing.T) {
	r := NewRegistry()
	p := r.Register(nil, 4)

	assert.Equal(t, DefaultName, p.Session.Name)
	assert.Equal(t, string(DefaultColor), string(p.Session.Color))
	assert.Empty(t, p.Session.LobbyKey)
	assert.NotZero(t, p.Session.TraceID)
}

func TestDeliverQueuesForLivePeer(t *testing.T) {
	r := NewRegistry()
	p := r.Register(nil, 2)

	require.True(t, r.Deliver(p.Session.ID, []byte("a")))
	assert.Equal(t, []byte("a"), <-p.Out())
}

func TestDeliverDropsWhenQueueFull(t *testing.T) {
	r := NewRegistry()
	p := r.Register(nil, 1)

	require.True(t, r.Deliver(p.Session.ID, []byte("a")))
	assert.False(t, r.Deliver(p.Session.ID, []byte("b")), "full queue drops, never blocks")

	// The first message is still intact.
	assert.Equal(t, []byte("a"), <-p.Out())
}

func TestDeliverAfterUnregister(t *testing.T) {
	r := NewRegistry()
	p := r.Register(nil, 2)
	r.Unregister(p.Session.ID)

	assert.False(t, r.Deliver(p.Session.ID, []byte("a")))
	assert.Zero(t, r.Len())
}

func TestCloseAllCancelsEveryPeer(t *testing.T) {
	r := NewRegistry()

	cancelled := 0
	for i := 0; i < 3; i++ {
		r.Register(func() { cancelled++ }, 2)
	}
	r.CloseAll()
	assert.Equal(t, 3, cancelled)
}
