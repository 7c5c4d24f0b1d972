// Package wpajax is the client for the WordPress AJAX layer that owns cart
// and order persistence. Every call is a form-url-encoded POST carrying an
// action name and a CSRF nonce; every response uses the admin-ajax envelope
// {success: bool, data: ...}.
package wpajax

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"yprint/config"
	"yprint/utils"
)

// Action names understood by the plugin backend.
const (
	ActionGetCartData            = "yprint_get_cart_data"
	ActionProcessFinalCheckout   = "yprint_process_final_checkout"
	ActionProcessPaymentMethod   = "yprint_process_payment_method"
	ActionRefreshCheckoutContext = "yprint_refresh_checkout_context"
	ActionApplyCoupon            = "yprint_cart_apply_coupon"
	ActionValidateVoucher        = "yprint_validate_voucher"
	ActionCheckEmailAvailability = "yprint_check_email_availability"
	ActionGetPendingOrder        = "yprint_get_pending_order"
)

// APIError is a success:false envelope from the backend. Its message is
// intended for the user (e.g. "Card declined").
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Action, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the WordPress AJAX endpoint.
type Client struct {
	endpoint   string
	nonce      string
	httpClient *http.Client
}

// NewClient creates a client for the given admin-ajax endpoint and nonce.
func NewClient(endpoint, nonce string) *Client {
	return &Client{
		endpoint:   endpoint,
		nonce:      nonce,
		httpClient: &http.Client{Timeout: config.AjaxRequestTimeout},
	}
}

// post sends one AJAX action and decodes the envelope into out (if non-nil).
func (c *Client) post(ctx context.Context, action string, form url.Values, out any) error {
	if form == nil {
		form = url.Values{}
	}
	form.Set("action", action)
	form.Set("nonce", c.nonce)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("error building %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error calling %s: %w", action, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			utils.Error("wpajax", "Error closing response body", "action", action, "error", cerr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("error reading %s response: %w", action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned HTTP %d", action, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("error decoding %s envelope: %w", action, err)
	}

	if !env.Success {
		return &APIError{Action: action, Message: envelopeMessage(env.Data)}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("error decoding %s data: %w", action, err)
		}
	}
	return nil
}

// envelopeMessage pulls the user-facing message out of an error payload.
func envelopeMessage(data json.RawMessage) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	// Some handlers answer with a bare string
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil && msg != "" {
		return msg
	}
	return "The request was rejected by the server."
}

// GetCartData fetches the current cart items and totals.
func (c *Client) GetCartData(ctx context.Context) (*CartData, error) {
	var data CartData
	if err := c.post(ctx, ActionGetCartData, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ProcessFinalCheckout submits the collected checkout data for order
// finalization.
func (c *Client) ProcessFinalCheckout(ctx context.Context, req FinalCheckoutRequest) (*FinalCheckoutResult, error) {
	form := url.Values{}
	if err := setJSONField(form, "shipping_address", req.ShippingAddress); err != nil {
		return nil, err
	}
	if err := setJSONField(form, "billing_address", req.BillingAddress); err != nil {
		return nil, err
	}
	if err := setJSONField(form, "payment_data", req.PaymentData); err != nil {
		return nil, err
	}
	form.Set("payment_method", req.PaymentMethod)
	if req.VoucherCode != "" {
		form.Set("voucher_code", req.VoucherCode)
	}

	var result FinalCheckoutResult
	if err := c.post(ctx, ActionProcessFinalCheckout, form, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ProcessPaymentMethod submits an express payment method for processing.
func (c *Client) ProcessPaymentMethod(ctx context.Context, req PaymentMethodRequest) (*PaymentMethodResult, error) {
	form := url.Values{}
	if err := setJSONField(form, "payment_method", req.PaymentMethod); err != nil {
		return nil, err
	}
	if req.ShippingAddress != nil {
		if err := setJSONField(form, "shipping_address", req.ShippingAddress); err != nil {
			return nil, err
		}
	}

	var result PaymentMethodResult
	if err := c.post(ctx, ActionProcessPaymentMethod, form, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RefreshCheckoutContext asks the backend to rebuild its checkout context.
func (c *Client) RefreshCheckoutContext(ctx context.Context) (json.RawMessage, error) {
	var data json.RawMessage
	if err := c.post(ctx, ActionRefreshCheckoutContext, nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ApplyCoupon applies a coupon to the cart and returns the updated cart.
func (c *Client) ApplyCoupon(ctx context.Context, code string) (*CartData, error) {
	form := url.Values{}
	form.Set("coupon_code", code)

	var data CartData
	if err := c.post(ctx, ActionApplyCoupon, form, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ValidateVoucher checks a voucher code against the current cart.
func (c *Client) ValidateVoucher(ctx context.Context, code string) (*VoucherResult, error) {
	form := url.Values{}
	form.Set("voucher_code", code)

	var result VoucherResult
	if err := c.post(ctx, ActionValidateVoucher, form, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckEmailAvailability reports whether an account email is still free.
func (c *Client) CheckEmailAvailability(ctx context.Context, email string) (bool, error) {
	form := url.Values{}
	form.Set("email", email)

	var result struct {
		Available bool `json:"available"`
	}
	if err := c.post(ctx, ActionCheckEmailAvailability, form, &result); err != nil {
		return false, err
	}
	return result.Available, nil
}

// GetPendingOrder fetches the order a returning customer left unfinished.
func (c *Client) GetPendingOrder(ctx context.Context) (*OrderData, error) {
	var data OrderData
	if err := c.post(ctx, ActionGetPendingOrder, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func setJSONField(form url.Values, key string, value any) error {
	if value == nil {
		form.Set(key, "{}")
		return nil
	}
	blob, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error serializing %s: %w", key, err)
	}
	form.Set(key, string(blob))
	return nil
}
