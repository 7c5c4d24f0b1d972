package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yprint/payment"
)

func newTestManager() *Manager {
	return NewManager(payment.NewMemorySDK(), newFakeGateway())
}

func TestManagerCreateAndGet(t *testing.T) {
	m := newTestManager()

	c := m.Create()
	require.NotNil(t, c)
	assert.Equal(t, 1, m.ActiveCount())

	got, ok := m.Get(c.Session.ID)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = m.Get("unknown")
	assert.False(t, ok)
}

func TestManagerRemoveDestroysElements(t *testing.T) {
	m := newTestManager()
	c := m.Create()
	require.NoError(t, completeCardInput(c))
	require.NotNil(t, c.Elements.Element(payment.ElementCard))

	m.Remove(c.Session.ID)

	assert.Zero(t, m.ActiveCount())
	assert.Nil(t, c.Elements.Element(payment.ElementCard), "removal releases the session's elements")

	// removing twice is harmless
	m.Remove(c.Session.ID)
}

func TestManagerCleanupExpired(t *testing.T) {
	m := newTestManager()
	m.timeout = 30 * time.Minute

	now := time.Now()
	stale := m.Create()
	stale.Session.clock = func() time.Time { return now }

	fresh := m.Create()

	// age the stale session past the idle timeout
	stale.Session.Touch()
	now = now.Add(31 * time.Minute)

	removed := m.CleanupExpired()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.ActiveCount())
	_, ok := m.Get(stale.Session.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.Session.ID)
	assert.True(t, ok)
}

func TestManagerGetTouchesSession(t *testing.T) {
	m := newTestManager()
	m.timeout = 30 * time.Minute

	now := time.Now()
	c := m.Create()
	c.Session.clock = func() time.Time { return now }
	c.Session.Touch()

	// activity just before the deadline keeps the session alive
	now = now.Add(29 * time.Minute)
	_, ok := m.Get(c.Session.ID)
	require.True(t, ok)

	now = now.Add(29 * time.Minute)
	assert.Zero(t, m.CleanupExpired())
	assert.Equal(t, 1, m.ActiveCount())
}
