package checkout

import (
	"context"
	"sync"
	"time"

	"yprint/config"
	"yprint/payment"
	"yprint/utils"
)

// Checkout wires the four components around one session.
type Checkout struct {
	Session    *Session
	Steps      *StepController
	Methods    *MethodRegistry
	Elements   *ElementLifecycle
	Submission *SubmissionCoordinator
}

// NewCheckout builds a checkout for a fresh session.
func NewCheckout(sdk payment.SDK, gateway Gateway) *Checkout {
	session := NewSession()
	elements := NewElementLifecycle(session, sdk)
	registry := NewMethodRegistry(session, elements)
	return &Checkout{
		Session:    session,
		Steps:      NewStepController(session, gateway, registry),
		Methods:    registry,
		Elements:   elements,
		Submission: NewSubmissionCoordinator(session, registry, elements, sdk, gateway),
	}
}

// End releases the checkout's payment elements. Elements live for the whole
// session and are destroyed only here.
func (c *Checkout) End() {
	c.Elements.DestroyAll()
}

// Manager manages all live checkout sessions in a unified way.
type Manager struct {
	mu        sync.RWMutex
	checkouts map[string]*Checkout

	sdk     payment.SDK
	gateway Gateway
	timeout time.Duration
}

// NewManager creates a manager producing checkouts bound to the given SDK
// and gateway.
func NewManager(sdk payment.SDK, gateway Gateway) *Manager {
	return &Manager{
		checkouts: make(map[string]*Checkout),
		sdk:       sdk,
		gateway:   gateway,
		timeout:   config.SessionTimeout,
	}
}

// Create starts a new checkout session.
func (m *Manager) Create() *Checkout {
	c := NewCheckout(m.sdk, m.gateway)
	m.mu.Lock()
	m.checkouts[c.Session.ID] = c
	m.mu.Unlock()

	utils.Info("manager", "Checkout session created", "session_id", c.Session.ID)
	return c
}

// Get retrieves a live checkout by session ID and marks it as used.
func (m *Manager) Get(id string) (*Checkout, bool) {
	m.mu.RLock()
	c, ok := m.checkouts[id]
	m.mu.RUnlock()
	if ok {
		c.Session.Touch()
	}
	return c, ok
}

// Remove ends and drops a checkout.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	c, ok := m.checkouts[id]
	if ok {
		delete(m.checkouts, id)
	}
	m.mu.Unlock()

	if ok {
		c.End()
		utils.Info("manager", "Checkout session removed", "session_id", id)
	}
}

// CleanupExpired ends and drops all idle sessions, returning the count.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	var expired []*Checkout
	for id, c := range m.checkouts {
		if c.Session.Expired(m.timeout) {
			delete(m.checkouts, id)
			expired = append(expired, c)
		}
	}
	m.mu.Unlock()

	for _, c := range expired {
		c.End()
	}
	if len(expired) > 0 {
		utils.Info("manager", "Expired checkout sessions cleaned up", "count", len(expired))
	}
	return len(expired)
}

// ActiveCount returns the number of live checkout sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checkouts)
}

// StartCleanup runs the expiry reaper until ctx is cancelled.
func (m *Manager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(config.SessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupExpired()
			}
		}
	}()
}
