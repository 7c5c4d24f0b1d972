package checkout

import (
	"context"
	"fmt"
	"sync"

	"yprint/payment"
	"yprint/utils"
)

// PaymentMethod identifies a payment instrument.
type PaymentMethod string

const (
	MethodCard             PaymentMethod = "card"
	MethodSEPADebit        PaymentMethod = "sepa_debit"
	MethodExpressApplePay  PaymentMethod = "express_apple_pay"
	MethodExpressGooglePay PaymentMethod = "express_google_pay"
)

// Valid reports whether m names a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodSEPADebit, MethodExpressApplePay, MethodExpressGooglePay:
		return true
	default:
		return false
	}
}

// IsExpress reports whether m is handled by a browser-native payment sheet.
func (m PaymentMethod) IsExpress() bool {
	return m == MethodExpressApplePay || m == MethodExpressGooglePay
}

// ElementKind returns the hosted element kind backing m, if any. Express
// methods use no hosted element.
func (m PaymentMethod) ElementKind() (payment.ElementKind, bool) {
	switch m {
	case MethodCard:
		return payment.ElementCard, true
	case MethodSEPADebit:
		return payment.ElementSEPA, true
	default:
		return "", false
	}
}

// MethodRegistry is the single source of truth for which payment method is
// active. Exactly one method is active at a time.
type MethodRegistry struct {
	mu       sync.Mutex
	session  *Session
	elements *ElementLifecycle
	active   PaymentMethod
	visible  map[PaymentMethod]bool
}

// NewMethodRegistry creates a registry with the card method active.
func NewMethodRegistry(session *Session, elements *ElementLifecycle) *MethodRegistry {
	return &MethodRegistry{
		session:  session,
		elements: elements,
		active:   MethodCard,
		visible:  map[PaymentMethod]bool{MethodCard: true},
	}
}

// SelectMethod switches the active payment method. Selecting the already
// active method is a no-op so repeated clicks cause no re-initialization.
// On change the previous method's error display is cleared (its element is
// kept alive; elements are expensive to recreate) and the target's element
// readiness is kicked off in the background. Validation at submit time gates
// on the readiness outcome.
func (r *MethodRegistry) SelectMethod(method PaymentMethod) error {
	if !method.Valid() {
		return fmt.Errorf("unknown payment method %q", method)
	}

	r.mu.Lock()
	if method == r.active {
		r.mu.Unlock()
		return nil
	}
	previous := r.active
	r.active = method
	r.visible[previous] = false
	r.visible[method] = true
	r.mu.Unlock()

	r.elements.ClearDisplayedError(previous)

	utils.Debug("methods", "Payment method switched", "session_id", r.session.ID, "from", previous, "to", method)

	r.kickReadiness(method)
	return nil
}

// EnsureActiveReady kicks element readiness for the active method. Called
// when the payment step is entered, so the default method's element comes up
// without an explicit selection.
func (r *MethodRegistry) EnsureActiveReady() {
	r.kickReadiness(r.ActiveMethod())
}

// kickReadiness starts the readiness poll in the background. The UI stays
// responsive immediately; submission validation gates on the outcome.
func (r *MethodRegistry) kickReadiness(method PaymentMethod) {
	if _, hasElement := method.ElementKind(); !hasElement {
		return
	}
	go func() {
		if err := r.elements.EnsureReady(context.Background(), method); err != nil {
			utils.Warn("methods", "Element readiness failed",
				"session_id", r.session.ID, "method", method, "error", err)
		}
	}()
}

// ActiveMethod returns the currently active payment method.
func (r *MethodRegistry) ActiveMethod() PaymentMethod {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// PanelVisible reports whether the input panel of a method is shown.
func (r *MethodRegistry) PanelVisible(method PaymentMethod) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible[method]
}
