// Package payment abstracts the external payment SDK behind a narrow
// interface: element creation and mounting, change events, and payment
// credential creation. The real implementation is backed by Stripe; an
// in-memory implementation serves local development and tests.
package payment

import (
	"context"
	"fmt"
)

// ElementKind identifies a hosted payment input element type.
type ElementKind string

const (
	ElementCard ElementKind = "card"
	ElementSEPA ElementKind = "sepa_debit"
)

// ChangeEvent is emitted by an element whenever its input state changes.
// This is the only observability into the fill state of a hosted element.
type ChangeEvent struct {
	Complete     bool
	ErrorMessage string
}

// Input carries raw payment input fed into a hosted element.
type Input struct {
	CardNumber string `json:"card_number"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CVC        string `json:"cvc"`
	IBAN       string `json:"iban"`
}

// Element is a hosted payment input widget.
type Element interface {
	// Mount attaches the element to its container. Mounting an already
	// mounted element is a no-op.
	Mount(container string) error

	// OnChange registers the change listener. Only one listener is kept.
	OnChange(fn func(ChangeEvent))

	// Update feeds new input into the element and fires the change listener.
	Update(in Input)

	// Destroy releases the element. A destroyed element cannot be remounted.
	Destroy()
}

// ElementFactory creates hosted elements.
type ElementFactory interface {
	Create(kind ElementKind) (Element, error)
}

// BillingAddress is the address portion of billing details.
type BillingAddress struct {
	Line1      string `json:"line1"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

// BillingDetails accompany credential creation.
type BillingDetails struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Phone   string         `json:"phone"`
	Address BillingAddress `json:"address"`
}

// Credential is an opaque token representing validated payment input. It is
// sent to the order backend for final charge authorization.
type Credential struct {
	ID   string      `json:"id"`
	Kind ElementKind `json:"kind"`
}

// DeclinedError reports that the SDK rejected the payment input itself, as
// opposed to being unreachable. The message is safe to show to the user.
type DeclinedError struct {
	Message string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment input rejected: %s", e.Message)
}

// SDK is the external payment service.
type SDK interface {
	// Initialized reports whether the SDK is ready for use. The backing
	// service may become ready only some time after process start.
	Initialized() bool

	// Elements returns the hosted-element factory.
	Elements() (ElementFactory, error)

	// CreatePaymentMethod builds a payment credential from the element's
	// current input and the given billing details.
	CreatePaymentMethod(ctx context.Context, kind ElementKind, el Element, billing BillingDetails) (*Credential, error)
}
