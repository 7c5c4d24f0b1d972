package payment

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrElementDestroyed is returned when operating on a destroyed element.
var ErrElementDestroyed = errors.New("payment element destroyed")

// HostedElement is the shared hosted-widget implementation used by both the
// Stripe and the in-memory SDK. It buffers the raw input locally, tracks
// completeness, and fires change events exactly like the iframe widget the
// checkout frontend talks to.
type HostedElement struct {
	mu        sync.Mutex
	kind      ElementKind
	container string
	mounted   bool
	destroyed bool
	onChange  func(ChangeEvent)

	input    Input
	complete bool
	errMsg   string
}

// NewHostedElement creates an unmounted element of the given kind.
func NewHostedElement(kind ElementKind) *HostedElement {
	return &HostedElement{kind: kind}
}

// Kind returns the element kind.
func (e *HostedElement) Kind() ElementKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kind
}

// Mount attaches the element to a container. Re-mounting is a no-op.
func (e *HostedElement) Mount(container string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrElementDestroyed
	}
	if e.mounted {
		return nil
	}
	e.container = container
	e.mounted = true
	return nil
}

// OnChange registers the change listener, replacing any previous one.
func (e *HostedElement) OnChange(fn func(ChangeEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// Update feeds new input into the element, revalidates, and notifies the
// change listener. The listener is invoked without the element lock held.
func (e *HostedElement) Update(in Input) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.input = in
	e.complete, e.errMsg = validateInput(e.kind, in)
	fn := e.onChange
	event := ChangeEvent{Complete: e.complete, ErrorMessage: e.errMsg}
	e.mu.Unlock()

	if fn != nil {
		fn(event)
	}
}

// Destroy releases the element.
func (e *HostedElement) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
	e.mounted = false
	e.onChange = nil
	e.input = Input{}
}

// Snapshot returns the buffered input and its validation state.
func (e *HostedElement) Snapshot() (Input, bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input, e.complete, e.errMsg
}

func validateInput(kind ElementKind, in Input) (complete bool, errMsg string) {
	switch kind {
	case ElementCard:
		return validateCard(in)
	case ElementSEPA:
		return validateSEPA(in)
	default:
		return false, "Unsupported payment element."
	}
}

func validateCard(in Input) (bool, string) {
	number := strings.ReplaceAll(in.CardNumber, " ", "")
	if number == "" && in.ExpMonth == "" && in.ExpYear == "" && in.CVC == "" {
		// untouched element: incomplete, but no error to display yet
		return false, ""
	}
	if n := len(number); n < 12 || n > 19 || !isDigits(number) {
		return false, "Your card number is incomplete."
	}
	month, err := strconv.Atoi(in.ExpMonth)
	if err != nil || month < 1 || month > 12 {
		return false, "Your card's expiration date is incomplete."
	}
	year, err := strconv.Atoi(in.ExpYear)
	if err != nil {
		return false, "Your card's expiration date is incomplete."
	}
	if year < 100 {
		year += 2000
	}
	if year < time.Now().Year() {
		return false, "Your card's expiration year is in the past."
	}
	if n := len(in.CVC); n < 3 || n > 4 || !isDigits(in.CVC) {
		return false, "Your card's security code is incomplete."
	}
	return true, ""
}

func validateSEPA(in Input) (bool, string) {
	iban := strings.ToUpper(strings.ReplaceAll(in.IBAN, " ", ""))
	if iban == "" {
		return false, ""
	}
	if len(iban) < 15 || len(iban) > 34 {
		return false, "Your IBAN is incomplete."
	}
	for _, r := range iban[:2] {
		if r < 'A' || r > 'Z' {
			return false, "Your IBAN is invalid."
		}
	}
	return true, ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// hostedFactory creates HostedElements. Both SDK implementations share it.
type hostedFactory struct{}

func (hostedFactory) Create(kind ElementKind) (Element, error) {
	return NewHostedElement(kind), nil
}
