package checkout

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"yprint/wpajax"
)

// Step is one of the four sequential checkout phases.
type Step string

const (
	StepAddress      Step = "address"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
	StepDone         Step = "done"
)

var stepOrder = map[Step]int{
	StepAddress:      0,
	StepPayment:      1,
	StepConfirmation: 2,
	StepDone:         3,
}

// Valid reports whether s names a known step.
func (s Step) Valid() bool {
	_, ok := stepOrder[s]
	return ok
}

// next returns the step following s, or "" for the final step.
func (s Step) next() Step {
	switch s {
	case StepAddress:
		return StepPayment
	case StepPayment:
		return StepConfirmation
	case StepConfirmation:
		return StepDone
	default:
		return ""
	}
}

// Address is a structured shipping or billing address.
type Address struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Street      string `json:"street"`
	HouseNumber string `json:"housenumber"`
	ZIP         string `json:"zip"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Phone       string `json:"phone"`
}

// requiredAddressFields lists the required fields in validation order. The
// returned field name is used for UI focus.
var requiredAddressFields = []struct {
	name  string
	value func(*Address) string
}{
	{"first_name", func(a *Address) string { return a.FirstName }},
	{"last_name", func(a *Address) string { return a.LastName }},
	{"street", func(a *Address) string { return a.Street }},
	{"housenumber", func(a *Address) string { return a.HouseNumber }},
	{"zip", func(a *Address) string { return a.ZIP }},
	{"city", func(a *Address) string { return a.City }},
	{"country", func(a *Address) string { return a.Country }},
}

// firstInvalidField returns the name of the first empty required field.
func (a *Address) firstInvalidField() (string, bool) {
	for _, f := range requiredAddressFields {
		if f.value(a) == "" {
			return f.name, false
		}
	}
	return "", true
}

// Session is the state of one checkout attempt. It is the explicit context
// object shared by the step controller, method registry, element lifecycle
// and submission coordinator.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	lastTouch time.Time
	step      Step

	shipping              Address
	billing               Address
	billingSameAsShipping bool
	savedAddressSelected  bool
	email                 string

	voucherCode string

	cart          *wpajax.CartData
	cartFetchedAt time.Time

	// address data frozen when the payment step is entered
	shippingSnapshot *Address
	billingSnapshot  *Address

	expressCredentialID string

	order *wpajax.OrderData

	clock func() time.Time
}

// NewSession creates a fresh checkout session starting at the address step.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:                    uuid.NewString(),
		CreatedAt:             now,
		lastTouch:             now,
		step:                  StepAddress,
		billingSameAsShipping: true,
		clock:                 time.Now,
	}
}

// Step returns the current checkout step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) setStep(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = step
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouch = s.clock()
}

// Expired reports whether the session has been idle longer than timeout.
func (s *Session) Expired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock().Sub(s.lastTouch) > timeout
}

// SetAddresses stores the entered addresses. When sameAsShipping is set the
// billing address mirrors the shipping address.
func (s *Session) SetAddresses(shipping Address, billing *Address, sameAsShipping bool, savedSelected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipping = shipping
	s.billingSameAsShipping = sameAsShipping
	s.savedAddressSelected = savedSelected
	if sameAsShipping || billing == nil {
		s.billing = shipping
	} else {
		s.billing = *billing
	}
}

// SetEmail stores the customer email used for billing details.
func (s *Session) SetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
}

// ShippingAddress returns the entered shipping address.
func (s *Session) ShippingAddress() Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipping
}

// EffectiveBillingAddress returns the billing address, honoring the
// billing-same-as-shipping flag.
func (s *Session) EffectiveBillingAddress() Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.billingSameAsShipping {
		return s.shipping
	}
	return s.billing
}

// Email returns the customer email.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// addressLooksPrefilled reports whether address validation may be skipped.
// This covers two cases on purpose: the user picked a previously saved
// address, or street/zip/city are already non-empty. The second case can let
// a partially typed custom address through; kept as-is pending product-owner
// clarification.
func (s *Session) addressLooksPrefilled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.savedAddressSelected {
		return true
	}
	return s.shipping.Street != "" && s.shipping.ZIP != "" && s.shipping.City != ""
}

// validateShippingAddress returns the first invalid field, if any.
func (s *Session) validateShippingAddress() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipping.firstInvalidField()
}

// snapshotAddresses freezes the address data for submission. Called when the
// payment step is entered.
func (s *Session) snapshotAddresses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	shipping := s.shipping
	s.shippingSnapshot = &shipping
	billing := s.billing
	if s.billingSameAsShipping {
		billing = s.shipping
	}
	s.billingSnapshot = &billing
}

// submissionAddresses returns the frozen address data, falling back to the
// live values if the payment step was never formally entered.
func (s *Session) submissionAddresses() (Address, Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shipping := s.shipping
	if s.shippingSnapshot != nil {
		shipping = *s.shippingSnapshot
	}
	billing := s.billing
	if s.billingSameAsShipping {
		billing = s.shipping
	}
	if s.billingSnapshot != nil {
		billing = *s.billingSnapshot
	}
	return shipping, billing
}

// SetVoucherCode records a validated voucher code.
func (s *Session) SetVoucherCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voucherCode = code
}

// VoucherCode returns the applied voucher code, if any.
func (s *Session) VoucherCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voucherCode
}

// Cart returns the cached cart snapshot and its fetch time.
func (s *Session) Cart() (*wpajax.CartData, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart, s.cartFetchedAt
}

// storeCart caches a fresh cart snapshot.
func (s *Session) storeCart(cart *wpajax.CartData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = cart
	s.cartFetchedAt = s.clock()
}

// cartFresh reports whether the cached snapshot is within the freshness
// window. Stale reads are safe; this only bounds redundant fetches.
func (s *Session) cartFresh(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart != nil && s.clock().Sub(s.cartFetchedAt) < ttl
}

// SetExpressCredential stores the credential produced by a browser payment
// sheet for the express path.
func (s *Session) SetExpressCredential(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expressCredentialID = id
}

// ExpressCredential returns the stored express credential ID.
func (s *Session) ExpressCredential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expressCredentialID
}

// CompleteOrder records a finalized order and moves the session to the
// confirmation step. It is idempotent and applies regardless of which step
// the user is currently looking at, so a late-arriving finalization response
// never corrupts the session.
func (s *Session) CompleteOrder(order *wpajax.OrderData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		s.order = order
	}
	if stepOrder[s.step] < stepOrder[StepConfirmation] {
		s.step = StepConfirmation
	}
}

// Order returns the finalized order, if any.
func (s *Session) Order() *wpajax.OrderData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// View is the JSON representation of the session state.
type View struct {
	SessionID             string            `json:"session_id"`
	Step                  Step              `json:"step"`
	ShippingAddress       Address           `json:"shipping_address"`
	BillingAddress        Address           `json:"billing_address"`
	BillingSameAsShipping bool              `json:"billing_same_as_shipping"`
	VoucherCode           string            `json:"voucher_code,omitempty"`
	Cart                  *wpajax.CartData  `json:"cart,omitempty"`
	Order                 *wpajax.OrderData `json:"order,omitempty"`
}

// View builds a snapshot of the session for API responses.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	billing := s.billing
	if s.billingSameAsShipping {
		billing = s.shipping
	}
	return View{
		SessionID:             s.ID,
		Step:                  s.step,
		ShippingAddress:       s.shipping,
		BillingAddress:        billing,
		BillingSameAsShipping: s.billingSameAsShipping,
		VoucherCode:           s.voucherCode,
		Cart:                  s.cart,
		Order:                 s.order,
	}
}
