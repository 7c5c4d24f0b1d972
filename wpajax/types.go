package wpajax

// CartItem is one line of the WooCommerce cart.
type CartItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// CartTotals are the WooCommerce cart totals.
type CartTotals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
	VAT      float64 `json:"vat"`
}

// CartData is the response of yprint_get_cart_data.
type CartData struct {
	Items   []CartItem `json:"items"`
	Totals  CartTotals `json:"totals"`
	Context string     `json:"context"`
}

// OrderData describes a finalized or pending WooCommerce order.
type OrderData struct {
	OrderID     int64   `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	Status      string  `json:"status"`
	Total       float64 `json:"total"`
}

// FinalCheckoutRequest is the input of yprint_process_final_checkout. The
// address and payment fields are serialized to JSON form fields, matching
// what the backend expects from the browser.
type FinalCheckoutRequest struct {
	ShippingAddress any
	BillingAddress  any
	PaymentData     any
	PaymentMethod   string
	VoucherCode     string
}

// FinalCheckoutResult is the success payload of yprint_process_final_checkout.
type FinalCheckoutResult struct {
	Message   string     `json:"message"`
	OrderData *OrderData `json:"order_data"`
}

// PaymentMethodRequest is the input of yprint_process_payment_method, used by
// the express payment path.
type PaymentMethodRequest struct {
	PaymentMethod   any
	ShippingAddress any
}

// PaymentMethodResult is the success payload of yprint_process_payment_method.
type PaymentMethodResult struct {
	NextStep  string     `json:"next_step"`
	OrderData *OrderData `json:"order_data"`
}

// VoucherResult is the response of yprint_validate_voucher.
type VoucherResult struct {
	Valid    bool    `json:"valid"`
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
	Message  string  `json:"message"`
}
