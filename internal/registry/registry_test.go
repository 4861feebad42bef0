package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taiszocche92-glitch/backend/internal/models"
)

type stubConn struct {
	id string
}

func (c *stubConn) ConnID() string            { return c.id }
func (c *stubConn) Send(ev models.Event) bool { return true }
func (c *stubConn) Close(reason string)       {}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	conn := &stubConn{id: "conn-1"}

	r.Register("user-1", conn)

	got, ok := r.Lookup("user-1")
	require.True(t, ok)
	assert.Equal(t, "conn-1", got.ConnID())
	assert.Equal(t, 1, r.Size())
}

func TestLookupUnknownUser(t *testing.T) {
	r := New()
	_, ok := r.Lookup("nobody")
	assert.False(t, ok)
}

func TestRegisterLastWins(t *testing.T) {
	r := New()
	first := &stubConn{id: "conn-1"}
	second := &stubConn{id: "conn-2"}

	r.Register("user-1", first)
	r.Register("user-1", second)

	got, ok := r.Lookup("user-1")
	require.True(t, ok)
	assert.Equal(t, "conn-2", got.ConnID())
	assert.Equal(t, 1, r.Size())
}

func TestUnregisterConnIgnoresReplacedSocket(t *testing.T) {
	r := New()
	stale := &stubConn{id: "conn-1"}
	live := &stubConn{id: "conn-2"}

	r.Register("user-1", stale)
	r.Register("user-1", live)

	// The stale socket's teardown must not drop the live mapping.
	assert.False(t, r.UnregisterConn("user-1", stale))
	got, ok := r.Lookup("user-1")
	require.True(t, ok)
	assert.Equal(t, "conn-2", got.ConnID())

	assert.True(t, r.UnregisterConn("user-1", live))
	_, ok = r.Lookup("user-1")
	assert.False(t, ok)
}

func TestUnregisterRemovesMapping(t *testing.T) {
	r := New()
	r.Register("user-1", &stubConn{id: "conn-1"})
	r.Unregister("user-1")

	_, ok := r.Lookup("user-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Size())
}
