package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentmethod"

	"yprint/utils"
)

// StripeSDK implements SDK on top of the Stripe API.
type StripeSDK struct {
	apiKey string
}

// NewStripeSDK configures the Stripe client with the given secret key.
func NewStripeSDK(apiKey string) *StripeSDK {
	stripe.Key = apiKey
	return &StripeSDK{apiKey: apiKey}
}

// Initialized reports whether a secret key is configured.
func (s *StripeSDK) Initialized() bool {
	return s.apiKey != ""
}

// Elements returns the hosted-element factory.
func (s *StripeSDK) Elements() (ElementFactory, error) {
	if !s.Initialized() {
		return nil, errors.New("stripe SDK not initialized")
	}
	return hostedFactory{}, nil
}

// CreatePaymentMethod builds a Stripe PaymentMethod from the element's
// buffered input and the billing details.
func (s *StripeSDK) CreatePaymentMethod(ctx context.Context, kind ElementKind, el Element, billing BillingDetails) (*Credential, error) {
	hosted, ok := el.(*HostedElement)
	if !ok {
		return nil, fmt.Errorf("unexpected element implementation %T", el)
	}
	input, complete, errMsg := hosted.Snapshot()
	if !complete {
		if errMsg == "" {
			errMsg = "The payment details are incomplete."
		}
		return nil, &DeclinedError{Message: errMsg}
	}

	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(kind)),
		BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
			Name:  stripe.String(billing.Name),
			Email: stripe.String(billing.Email),
			Phone: stripe.String(billing.Phone),
			Address: &stripe.AddressParams{
				Line1:      stripe.String(billing.Address.Line1),
				PostalCode: stripe.String(billing.Address.PostalCode),
				City:       stripe.String(billing.Address.City),
				Country:    stripe.String(billing.Address.Country),
			},
		},
	}
	params.Context = ctx

	switch kind {
	case ElementCard:
		expMonth, _ := strconv.ParseInt(input.ExpMonth, 10, 64)
		expYear, _ := strconv.ParseInt(input.ExpYear, 10, 64)
		if expYear < 100 {
			expYear += 2000
		}
		params.Card = &stripe.PaymentMethodCardParams{
			Number:   stripe.String(input.CardNumber),
			ExpMonth: stripe.Int64(expMonth),
			ExpYear:  stripe.Int64(expYear),
			CVC:      stripe.String(input.CVC),
		}
	case ElementSEPA:
		params.SEPADebit = &stripe.PaymentMethodSEPADebitParams{
			IBAN: stripe.String(input.IBAN),
		}
	default:
		return nil, fmt.Errorf("unsupported element kind %q", kind)
	}

	pm, err := paymentmethod.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			utils.Warn("stripe", "Payment method rejected", "kind", kind, "code", stripeErr.Code)
			return nil, &DeclinedError{Message: stripeErr.Msg}
		}
		return nil, fmt.Errorf("error creating payment method: %w", err)
	}

	utils.Info("stripe", "Payment method created", "kind", kind, "payment_method_id", pm.ID)
	return &Credential{ID: pm.ID, Kind: kind}, nil
}
