package checkout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"yprint/payment"
	"yprint/wpajax"
)

// fakeGateway is a scriptable Gateway with call counters.
type fakeGateway struct {
	mu sync.Mutex

	cart      *wpajax.CartData
	cartErr   error
	cartCalls int

	order         *wpajax.OrderData
	finalizeErr   error
	finalizeDelay time.Duration
	finalizeCalls int
	finalizeReqs  []wpajax.FinalCheckoutRequest

	expressErr   error
	expressCalls int
	expressReqs  []wpajax.PaymentMethodRequest

	voucher    *wpajax.VoucherResult
	voucherErr error

	couponCart  *wpajax.CartData
	couponErr   error
	couponCalls int

	refreshCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		cart: &wpajax.CartData{
			Items:  []wpajax.CartItem{{ID: "42", Name: "Classic Tee", Quantity: 1, Price: 39.99}},
			Totals: wpajax.CartTotals{Subtotal: 39.99, Shipping: 4.90, Total: 44.89},
		},
		order: &wpajax.OrderData{OrderID: 4711, OrderNumber: "YP-4711", Status: "processing", Total: 44.89},
	}
}

func (g *fakeGateway) GetCartData(ctx context.Context) (*wpajax.CartData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cartCalls++
	if g.cartErr != nil {
		return nil, g.cartErr
	}
	return g.cart, nil
}

func (g *fakeGateway) ProcessFinalCheckout(ctx context.Context, req wpajax.FinalCheckoutRequest) (*wpajax.FinalCheckoutResult, error) {
	g.mu.Lock()
	g.finalizeCalls++
	g.finalizeReqs = append(g.finalizeReqs, req)
	delay := g.finalizeDelay
	err := g.finalizeErr
	order := g.order
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return &wpajax.FinalCheckoutResult{Message: "Order completed", OrderData: order}, nil
}

func (g *fakeGateway) ProcessPaymentMethod(ctx context.Context, req wpajax.PaymentMethodRequest) (*wpajax.PaymentMethodResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expressCalls++
	g.expressReqs = append(g.expressReqs, req)
	if g.expressErr != nil {
		return nil, g.expressErr
	}
	return &wpajax.PaymentMethodResult{NextStep: "confirmation", OrderData: g.order}, nil
}

func (g *fakeGateway) ValidateVoucher(ctx context.Context, code string) (*wpajax.VoucherResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.voucherErr != nil {
		return nil, g.voucherErr
	}
	if g.voucher != nil {
		return g.voucher, nil
	}
	return &wpajax.VoucherResult{Valid: false, Code: code, Message: "Unknown voucher"}, nil
}

func (g *fakeGateway) ApplyCoupon(ctx context.Context, code string) (*wpajax.CartData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.couponCalls++
	if g.couponErr != nil {
		return nil, g.couponErr
	}
	if g.couponCart != nil {
		return g.couponCart, nil
	}
	return g.cart, nil
}

func (g *fakeGateway) RefreshCheckoutContext(ctx context.Context) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshCalls++
	return json.RawMessage(`{"refreshed":true}`), nil
}

func (g *fakeGateway) finalizations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finalizeCalls
}

// newTestCheckout builds a checkout with a fast element retry so readiness
// tests finish quickly.
func newTestCheckout(sdk payment.SDK, gateway Gateway) *Checkout {
	c := NewCheckout(sdk, gateway)
	c.Elements.retryDelay = time.Millisecond
	return c
}

func testShippingAddress() Address {
	return Address{
		FirstName:   "Anna",
		LastName:    "Muster",
		Street:      "Teststr.",
		HouseNumber: "5",
		ZIP:         "10115",
		City:        "Berlin",
		Country:     "DE",
		Phone:       "+49 30 1234567",
	}
}

// toPaymentStep moves a fresh checkout onto the payment step with a complete
// address.
func toPaymentStep(c *Checkout) {
	c.Session.SetAddresses(testShippingAddress(), nil, true, false)
	c.Session.SetEmail("anna@example.com")
	c.Steps.AdvanceTo(context.Background(), StepPayment)
}

// completeCardInput mounts the card element and feeds it valid input.
func completeCardInput(c *Checkout) error {
	if err := c.Elements.EnsureReady(context.Background(), MethodCard); err != nil {
		return err
	}
	return c.Elements.UpdateInput(MethodCard, payment.Input{
		CardNumber: "4242424242424242",
		ExpMonth:   "12",
		ExpYear:    "2032",
		CVC:        "123",
	})
}
