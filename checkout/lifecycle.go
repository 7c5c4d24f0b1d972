package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"yprint/config"
	"yprint/payment"
	"yprint/utils"
)

// ElementState is the lifecycle state of a hosted payment element.
type ElementState string

const (
	ElementUninitialized   ElementState = "uninitialized"
	ElementCreating        ElementState = "creating"
	ElementMounted         ElementState = "mounted"
	ElementMountedComplete ElementState = "mounted_complete"
	ElementMountedInvalid  ElementState = "mounted_invalid"
	ElementFailed          ElementState = "failed"
)

// ElementHandle tracks one hosted element across the session. The element is
// created lazily on first need and destroyed only when the session ends.
type ElementHandle struct {
	mu      sync.Mutex
	kind    payment.ElementKind
	state   ElementState
	element payment.Element
	mounted bool

	// observed via change events, the only view into the widget fill state
	hasChange           bool
	complete            bool
	lastValidationError string

	ensureMu sync.Mutex
}

func newElementHandle(kind payment.ElementKind) *ElementHandle {
	return &ElementHandle{kind: kind, state: ElementUninitialized}
}

// State returns the current lifecycle state.
func (h *ElementHandle) State() ElementState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ready reports whether the element is mounted (in any fill state).
func (h *ElementHandle) ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == ElementMounted || h.state == ElementMountedComplete || h.state == ElementMountedInvalid
}

// InputState returns what change events have reported so far.
func (h *ElementHandle) InputState() (hasChange, complete bool, validationError string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasChange, h.complete, h.lastValidationError
}

func (h *ElementHandle) recordChange(ev payment.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hasChange = true
	h.complete = ev.Complete
	h.lastValidationError = ev.ErrorMessage
	switch h.state {
	case ElementMounted, ElementMountedComplete, ElementMountedInvalid:
		if ev.ErrorMessage != "" {
			h.state = ElementMountedInvalid
		} else if ev.Complete {
			h.state = ElementMountedComplete
		} else {
			h.state = ElementMounted
		}
	}
}

// clearDisplayedError hides the validation error without touching the
// underlying element or its buffered input.
func (h *ElementHandle) clearDisplayedError() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastValidationError = ""
	if h.state == ElementMountedInvalid {
		h.state = ElementMounted
	}
}

// ElementLifecycle manages creation, mounting and readiness of the hosted
// payment elements. The backing SDK loads asynchronously relative to this
// code, so readiness is a bounded retry rather than a strict dependency
// order.
type ElementLifecycle struct {
	session *Session
	sdk     payment.SDK

	mu      sync.Mutex
	handles map[payment.ElementKind]*ElementHandle

	maxAttempts int
	retryDelay  time.Duration
}

// NewElementLifecycle creates the lifecycle for one session.
func NewElementLifecycle(session *Session, sdk payment.SDK) *ElementLifecycle {
	return &ElementLifecycle{
		session:     session,
		sdk:         sdk,
		handles:     make(map[payment.ElementKind]*ElementHandle),
		maxAttempts: config.MaxElementAttempts,
		retryDelay:  config.ElementRetryDelay,
	}
}

// handle returns the handle for a kind, creating the bookkeeping lazily.
func (l *ElementLifecycle) handle(kind payment.ElementKind) *ElementHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.handles[kind]
	if !ok {
		h = newElementHandle(kind)
		l.handles[kind] = h
	}
	return h
}

// EnsureReady brings the hosted element for a method up, retrying a bounded
// number of times. It is idempotent: a mounted element returns immediately
// and is never created or mounted twice. Express methods need no element and
// always succeed. Once the attempts are exhausted the handle is failed for
// the rest of the session and only a page reload recovers.
func (l *ElementLifecycle) EnsureReady(ctx context.Context, method PaymentMethod) error {
	kind, hasElement := method.ElementKind()
	if !hasElement {
		return nil
	}

	h := l.handle(kind)
	h.ensureMu.Lock()
	defer h.ensureMu.Unlock()

	if h.ready() {
		return nil
	}
	if h.State() == ElementFailed {
		return &Failure{Kind: FailureSDKUnavailable, Message: msgReloadPage}
	}

	attempt := 0
	policy := RetryPolicy{MaxAttempts: l.maxAttempts, Delay: l.retryDelay}
	err := policy.Do(ctx, func() error {
		attempt++
		return l.tryMount(h, kind, attempt)
	})
	if err != nil {
		l.failHandle(h)
		utils.Error("lifecycle", "Element initialization exhausted",
			"session_id", l.session.ID, "kind", kind, "attempts", attempt, "error", err)
		return &Failure{Kind: FailureSDKUnavailable, Message: msgReloadPage}
	}

	utils.Debug("lifecycle", "Element ready", "session_id", l.session.ID, "kind", kind, "attempts", attempt)
	return nil
}

// tryMount performs one readiness attempt: SDK up, factory obtainable,
// element created once, mounted once, change listener attached.
func (l *ElementLifecycle) tryMount(h *ElementHandle, kind payment.ElementKind, attempt int) error {
	if !l.sdk.Initialized() {
		utils.Debug("lifecycle", "SDK not initialized yet",
			"session_id", l.session.ID, "kind", kind, "attempt", attempt)
		return errors.New("payment SDK not initialized")
	}

	factory, err := l.sdk.Elements()
	if err != nil {
		return fmt.Errorf("elements factory unavailable: %w", err)
	}

	h.mu.Lock()
	element := h.element
	h.mu.Unlock()

	if element == nil {
		h.mu.Lock()
		h.state = ElementCreating
		h.mu.Unlock()

		element, err = factory.Create(kind)
		if err != nil {
			return fmt.Errorf("error creating %s element: %w", kind, err)
		}
		element.OnChange(h.recordChange)

		h.mu.Lock()
		h.element = element
		h.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.mounted {
		if err := element.Mount(containerFor(kind)); err != nil {
			return fmt.Errorf("error mounting %s element: %w", kind, err)
		}
		h.mounted = true
	}
	h.state = ElementMounted
	return nil
}

func (l *ElementLifecycle) failHandle(h *ElementHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = ElementFailed
}

func containerFor(kind payment.ElementKind) string {
	return fmt.Sprintf("#yprint-%s-element", kind)
}

// ClearDisplayedError hides a method's validation error without destroying
// its element. Used when the active method switches away.
func (l *ElementLifecycle) ClearDisplayedError(method PaymentMethod) {
	kind, hasElement := method.ElementKind()
	if !hasElement {
		return
	}
	l.mu.Lock()
	h, ok := l.handles[kind]
	l.mu.Unlock()
	if ok {
		h.clearDisplayedError()
	}
}

// UpdateInput feeds payment input into a method's element, which fires its
// change listener.
func (l *ElementLifecycle) UpdateInput(method PaymentMethod, in payment.Input) error {
	kind, hasElement := method.ElementKind()
	if !hasElement {
		return fmt.Errorf("method %q has no hosted element", method)
	}
	h := l.handle(kind)

	h.mu.Lock()
	element := h.element
	h.mu.Unlock()
	if element == nil {
		return fmt.Errorf("%s element not ready", kind)
	}
	element.Update(in)
	return nil
}

// Handle exposes the element handle of a method for validation.
func (l *ElementLifecycle) Handle(method PaymentMethod) (*ElementHandle, bool) {
	kind, hasElement := method.ElementKind()
	if !hasElement {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.handles[kind]
	return h, ok
}

// Element returns the underlying element of a kind, if created.
func (l *ElementLifecycle) Element(kind payment.ElementKind) payment.Element {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.handles[kind]; ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.element
	}
	return nil
}

// DestroyAll releases every element. Called when the session ends.
func (l *ElementLifecycle) DestroyAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range l.handles {
		h.mu.Lock()
		if h.element != nil {
			h.element.Destroy()
		}
		h.element = nil
		h.mounted = false
		h.state = ElementUninitialized
		h.mu.Unlock()
	}
}
