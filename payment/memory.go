package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewMemorySDK constructs an in-memory payment SDK. It is used when no
// Stripe key is configured and throughout the tests.
func NewMemorySDK() *MemorySDK {
	return &MemorySDK{}
}

// MemorySDK is a deterministic SDK implementation. Its readiness and failure
// behavior can be scripted to exercise the element-lifecycle retry paths.
type MemorySDK struct {
	mu sync.Mutex

	neverReady  bool
	readyAfter  int // Initialized() reports false for this many calls
	initCalls   int
	elementsErr error

	createErr   error
	createDelay time.Duration
	createCalls int

	credentials []Credential
}

// NeverReady makes Initialized report false forever.
func (s *MemorySDK) NeverReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.neverReady = true
}

// ReadyAfter makes Initialized report false for the first n calls.
func (s *MemorySDK) ReadyAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyAfter = n
}

// FailElements makes Elements return the given error.
func (s *MemorySDK) FailElements(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elementsErr = err
}

// FailCredential makes CreatePaymentMethod return the given error.
func (s *MemorySDK) FailCredential(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

// DelayCredential makes CreatePaymentMethod block for d before responding,
// simulating the SDK hanging silently.
func (s *MemorySDK) DelayCredential(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createDelay = d
}

// InitCalls returns how often Initialized was probed (for inspection).
func (s *MemorySDK) InitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCalls
}

// CreateCalls returns how often a credential was requested (for inspection).
func (s *MemorySDK) CreateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls
}

// Initialized reports scripted readiness.
func (s *MemorySDK) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCalls++
	if s.neverReady {
		return false
	}
	return s.initCalls > s.readyAfter
}

// Elements returns the hosted-element factory.
func (s *MemorySDK) Elements() (ElementFactory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.elementsErr != nil {
		return nil, s.elementsErr
	}
	return hostedFactory{}, nil
}

// CreatePaymentMethod validates the element's buffered input and mints an
// opaque credential.
func (s *MemorySDK) CreatePaymentMethod(ctx context.Context, kind ElementKind, el Element, billing BillingDetails) (*Credential, error) {
	s.mu.Lock()
	s.createCalls++
	delay := s.createDelay
	failErr := s.createErr
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failErr != nil {
		return nil, failErr
	}

	hosted, ok := el.(*HostedElement)
	if !ok {
		return nil, errors.New("unexpected element implementation")
	}
	_, complete, errMsg := hosted.Snapshot()
	if !complete {
		if errMsg == "" {
			errMsg = "The payment details are incomplete."
		}
		return nil, &DeclinedError{Message: errMsg}
	}

	cred := Credential{ID: "pm_mem_" + uuid.NewString(), Kind: kind}
	s.mu.Lock()
	s.credentials = append(s.credentials, cred)
	s.mu.Unlock()
	return &cred, nil
}
