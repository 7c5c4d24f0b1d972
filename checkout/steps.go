package checkout

import (
	"context"
	"sync"

	"yprint/config"
	"yprint/utils"
	"yprint/wpajax"
)

// AdvanceResult reports the outcome of a step transition. Validation
// failures are not errors; callers check OK and InvalidField.
type AdvanceResult struct {
	OK           bool   `json:"ok"`
	Step         Step   `json:"step"`
	InvalidField string `json:"invalid_field,omitempty"`
	Message      string `json:"message,omitempty"`
}

// StepController gates forward navigation on per-step validation and owns
// the side effects of entering a step.
type StepController struct {
	mu      sync.Mutex
	session *Session
	gateway Gateway
	methods *MethodRegistry
}

// NewStepController creates the controller for one session.
func NewStepController(session *Session, gateway Gateway, methods *MethodRegistry) *StepController {
	return &StepController{session: session, gateway: gateway, methods: methods}
}

// AdvanceTo moves the session forward to target, which must be the step
// directly after the current one. The source step is validated first; on
// failure the step is unchanged and the first invalid field is returned for
// UI focus. On success the target step's entry side effect runs.
func (c *StepController) AdvanceTo(ctx context.Context, target Step) AdvanceResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.session.Step()
	if !target.Valid() || target != current.next() {
		return AdvanceResult{OK: false, Step: current, Message: "invalid step transition"}
	}

	switch current {
	case StepAddress:
		// Saved or prefilled addresses skip field validation entirely.
		if !c.session.addressLooksPrefilled() {
			if field, ok := c.session.validateShippingAddress(); !ok {
				utils.Debug("steps", "Address validation failed",
					"session_id", c.session.ID, "field", field)
				return AdvanceResult{OK: false, Step: current, InvalidField: field}
			}
		}
	case StepPayment:
		// Advancing past payment is driven by a successful submission.
		if c.session.Order() == nil {
			return AdvanceResult{OK: false, Step: current, Message: "payment has not completed"}
		}
	}

	c.enterStep(ctx, target)
	c.session.setStep(target)
	c.session.Touch()

	utils.Info("steps", "Step advanced", "session_id", c.session.ID, "from", current, "to", target)
	return AdvanceResult{OK: true, Step: target}
}

// GoBack moves the session backward to target. Backward navigation never
// validates and never fails; the target step's entry side effect re-runs.
func (c *StepController) GoBack(ctx context.Context, target Step) AdvanceResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.session.Step()
	if !target.Valid() || stepOrder[target] >= stepOrder[current] {
		return AdvanceResult{OK: true, Step: current}
	}

	c.enterStep(ctx, target)
	c.session.setStep(target)
	c.session.Touch()

	utils.Info("steps", "Step navigated back", "session_id", c.session.ID, "from", current, "to", target)
	return AdvanceResult{OK: true, Step: target}
}

// enterStep runs the entry side effect of a step. Side-effect failures are
// logged but never block navigation; stale cart data is safe to display.
func (c *StepController) enterStep(ctx context.Context, step Step) {
	switch step {
	case StepAddress:
		if _, err := c.gateway.RefreshCheckoutContext(ctx); err != nil {
			utils.Warn("steps", "Checkout context refresh failed", "session_id", c.session.ID, "error", err)
		}
	case StepPayment:
		if _, err := c.refreshCart(ctx, false); err != nil {
			utils.Warn("steps", "Cart refresh failed on payment entry", "session_id", c.session.ID, "error", err)
		}
		c.session.snapshotAddresses()
		c.methods.EnsureActiveReady()
	}
}

// RefreshCart returns the cart totals, fetching from the backend only when
// the cached snapshot is older than the freshness window.
func (c *StepController) RefreshCart(ctx context.Context, force bool) (*wpajax.CartData, error) {
	return c.refreshCart(ctx, force)
}

func (c *StepController) refreshCart(ctx context.Context, force bool) (*wpajax.CartData, error) {
	if !force && c.session.cartFresh(config.CartCacheTTL) {
		cart, _ := c.session.Cart()
		return cart, nil
	}

	cart, err := c.gateway.GetCartData(ctx)
	if err != nil {
		return nil, err
	}
	c.session.storeCart(cart)
	return cart, nil
}

// ApplyVoucher validates a voucher code against the cart. A valid voucher is
// stored on the session, applied as a coupon, and the cart totals are
// revalidated by a forced refresh.
func (c *StepController) ApplyVoucher(ctx context.Context, code string) (*wpajax.VoucherResult, error) {
	result, err := c.gateway.ValidateVoucher(ctx, code)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		utils.Debug("steps", "Voucher rejected", "session_id", c.session.ID, "code", code)
		return result, nil
	}

	c.session.SetVoucherCode(code)
	if cart, err := c.gateway.ApplyCoupon(ctx, code); err != nil {
		utils.Warn("steps", "Coupon apply failed after validation", "session_id", c.session.ID, "error", err)
	} else {
		c.session.storeCart(cart)
	}
	return result, nil
}
