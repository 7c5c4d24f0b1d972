package checkout

import (
	"context"
	"encoding/json"

	"yprint/wpajax"
)

// Gateway is the slice of the WordPress AJAX layer the checkout engine
// depends on. *wpajax.Client satisfies it.
type Gateway interface {
	GetCartData(ctx context.Context) (*wpajax.CartData, error)
	ProcessFinalCheckout(ctx context.Context, req wpajax.FinalCheckoutRequest) (*wpajax.FinalCheckoutResult, error)
	ProcessPaymentMethod(ctx context.Context, req wpajax.PaymentMethodRequest) (*wpajax.PaymentMethodResult, error)
	ValidateVoucher(ctx context.Context, code string) (*wpajax.VoucherResult, error)
	ApplyCoupon(ctx context.Context, code string) (*wpajax.CartData, error)
	RefreshCheckoutContext(ctx context.Context) (json.RawMessage, error)
}
