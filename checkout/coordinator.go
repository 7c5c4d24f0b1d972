package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"yprint/config"
	"yprint/payment"
	"yprint/utils"
	"yprint/wpajax"
)

// AttemptStatus is the state of one submission attempt.
type AttemptStatus string

const (
	AttemptValidating         AttemptStatus = "validating"
	AttemptCreatingCredential AttemptStatus = "creating_credential"
	AttemptSubmitting         AttemptStatus = "submitting"
	AttemptSucceeded          AttemptStatus = "succeeded"
	AttemptFailed             AttemptStatus = "failed"
)

// SubmissionAttempt is one end-to-end checkout completion attempt. Failed
// attempts are never retried automatically; the user resubmits explicitly.
type SubmissionAttempt struct {
	ID         string            `json:"id"`
	Status     AttemptStatus     `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Failure    *Failure          `json:"failure,omitempty"`
	Order      *wpajax.OrderData `json:"order,omitempty"`
}

// SubmissionCoordinator drives one checkout completion attempt: validate the
// active method, build a credential, submit to order finalization, report.
type SubmissionCoordinator struct {
	session  *Session
	registry *MethodRegistry
	elements *ElementLifecycle
	sdk      payment.SDK
	gateway  Gateway

	credentialTimeout time.Duration

	mu          sync.Mutex
	inFlight    bool
	lastAttempt *SubmissionAttempt
}

// NewSubmissionCoordinator creates the coordinator for one session.
func NewSubmissionCoordinator(session *Session, registry *MethodRegistry, elements *ElementLifecycle, sdk payment.SDK, gateway Gateway) *SubmissionCoordinator {
	return &SubmissionCoordinator{
		session:           session,
		registry:          registry,
		elements:          elements,
		sdk:               sdk,
		gateway:           gateway,
		credentialTimeout: config.CredentialTimeout,
	}
}

// LastAttempt returns the most recent submission attempt, if any.
func (c *SubmissionCoordinator) LastAttempt() *SubmissionAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAttempt
}

// Submit runs one submission attempt for the active payment method. Only one
// attempt may be in flight per session; concurrent calls fail immediately
// without touching the network, so duplicate clicks can never create
// duplicate orders.
func (c *SubmissionCoordinator) Submit(ctx context.Context) *SubmissionAttempt {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		utils.Warn("submit", "Submission rejected, attempt already in flight", "session_id", c.session.ID)
		return &SubmissionAttempt{
			ID:         uuid.NewString(),
			Status:     AttemptFailed,
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
			Failure:    &Failure{Kind: FailureValidation, Message: msgSubmissionInFlight},
		}
	}
	c.inFlight = true
	attempt := &SubmissionAttempt{
		ID:        uuid.NewString(),
		Status:    AttemptValidating,
		StartedAt: time.Now(),
	}
	c.lastAttempt = attempt
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
		attempt.FinishedAt = time.Now()
	}()

	method := c.registry.ActiveMethod()

	if failure := c.validateActiveMethod(ctx, method); failure != nil {
		return c.fail(attempt, failure)
	}

	if method.IsExpress() {
		return c.submitExpress(ctx, attempt, method)
	}
	return c.submitHosted(ctx, attempt, method)
}

// submitHosted materializes a credential from the hosted element and drives
// the order to finalization.
func (c *SubmissionCoordinator) submitHosted(ctx context.Context, attempt *SubmissionAttempt, method PaymentMethod) *SubmissionAttempt {
	attempt.Status = AttemptCreatingCredential

	kind, _ := method.ElementKind()
	element := c.elements.Element(kind)
	if element == nil {
		return c.fail(attempt, &Failure{Kind: FailureSDKUnavailable, Message: msgReloadPage})
	}

	credential, failure := c.createCredential(ctx, kind, element)
	if failure != nil {
		return c.fail(attempt, failure)
	}

	attempt.Status = AttemptSubmitting
	shipping, billing := c.session.submissionAddresses()
	result, err := c.gateway.ProcessFinalCheckout(ctx, wpajax.FinalCheckoutRequest{
		ShippingAddress: shipping,
		BillingAddress:  billing,
		PaymentData:     credential,
		PaymentMethod:   string(method),
		VoucherCode:     c.session.VoucherCode(),
	})
	if err != nil {
		return c.fail(attempt, serverFailure(err))
	}

	// A late response after the user navigated away still lands safely: the
	// session applies the order idempotently regardless of displayed step.
	c.session.CompleteOrder(result.OrderData)
	attempt.Status = AttemptSucceeded
	attempt.Order = result.OrderData

	utils.Info("submit", "Checkout finalized", "session_id", c.session.ID,
		"method", method, "attempt_id", attempt.ID)
	return attempt
}

// submitExpress hands the browser-created payment method to the backend. No
// credential is created here; the payment sheet already produced one.
func (c *SubmissionCoordinator) submitExpress(ctx context.Context, attempt *SubmissionAttempt, method PaymentMethod) *SubmissionAttempt {
	credentialID := c.session.ExpressCredential()
	if credentialID == "" {
		return c.fail(attempt, &Failure{Kind: FailureValidation, Message: msgExpressNoCredential})
	}

	attempt.Status = AttemptSubmitting
	shipping, _ := c.session.submissionAddresses()
	result, err := c.gateway.ProcessPaymentMethod(ctx, wpajax.PaymentMethodRequest{
		PaymentMethod: map[string]string{
			"id":   credentialID,
			"type": string(method),
		},
		ShippingAddress: shipping,
	})
	if err != nil {
		return c.fail(attempt, serverFailure(err))
	}

	c.session.CompleteOrder(result.OrderData)
	attempt.Status = AttemptSucceeded
	attempt.Order = result.OrderData

	utils.Info("submit", "Express checkout finalized", "session_id", c.session.ID,
		"method", method, "next_step", result.NextStep)
	return attempt
}

// validateActiveMethod checks that the active method can produce a
// credential. Hosted methods require a ready element whose last change event
// reported complete input. If no change event ever fired (autofilled widget,
// user never typed) a throwaway credential creation probes validity instead.
// Express methods are always valid; the payment sheet enforces completeness.
func (c *SubmissionCoordinator) validateActiveMethod(ctx context.Context, method PaymentMethod) *Failure {
	if method.IsExpress() {
		return nil
	}

	if err := c.elements.EnsureReady(ctx, method); err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			return failure
		}
		return &Failure{Kind: FailureSDKUnavailable, Message: msgReloadPage}
	}

	handle, ok := c.elements.Handle(method)
	if !ok {
		return &Failure{Kind: FailureSDKUnavailable, Message: msgReloadPage}
	}
	hasChange, complete, validationError := handle.InputState()

	if !hasChange {
		return c.probeCredential(ctx, method)
	}
	if validationError != "" {
		return &Failure{Kind: FailureValidation, Message: validationError}
	}
	if !complete {
		return &Failure{Kind: FailureValidation, Message: msgIncompleteInput}
	}
	return nil
}

// probeCredential attempts a throwaway credential creation purely to test
// whether the widget holds valid input.
func (c *SubmissionCoordinator) probeCredential(ctx context.Context, method PaymentMethod) *Failure {
	kind, _ := method.ElementKind()
	element := c.elements.Element(kind)
	if element == nil {
		return &Failure{Kind: FailureSDKUnavailable, Message: msgReloadPage}
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.credentialTimeout)
	defer cancel()

	_, err := c.sdk.CreatePaymentMethod(probeCtx, kind, element, c.billingDetails())
	if err != nil {
		var declined *payment.DeclinedError
		if errors.As(err, &declined) {
			return &Failure{Kind: FailureValidation, Message: declined.Message}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return &Failure{Kind: FailureNetwork, Message: msgCommunication}
		}
		return &Failure{Kind: FailureValidation, Message: msgIncompleteInput}
	}

	utils.Debug("submit", "Credential probe succeeded without change events",
		"session_id", c.session.ID, "method", method)
	return nil
}

// createCredential requests a payment credential under the hard client-side
// timeout. The SDK call can hang silently, which is why exceeding the
// timeout is reported as a communication issue rather than bad input.
func (c *SubmissionCoordinator) createCredential(ctx context.Context, kind payment.ElementKind, element payment.Element) (*payment.Credential, *Failure) {
	credCtx, cancel := context.WithTimeout(ctx, c.credentialTimeout)
	defer cancel()

	credential, err := c.sdk.CreatePaymentMethod(credCtx, kind, element, c.billingDetails())
	if err != nil {
		var declined *payment.DeclinedError
		switch {
		case errors.As(err, &declined):
			return nil, &Failure{Kind: FailureCredential, Message: declined.Message}
		case errors.Is(err, context.DeadlineExceeded):
			utils.Error("submit", "Credential creation timed out",
				"session_id", c.session.ID, "kind", kind, "timeout", c.credentialTimeout)
			return nil, &Failure{Kind: FailureNetwork, Message: msgCommunication}
		default:
			utils.Error("submit", "Credential creation failed",
				"session_id", c.session.ID, "kind", kind, "error", err)
			return nil, &Failure{Kind: FailureCredential, Message: msgOrderFailed}
		}
	}
	return credential, nil
}

// billingDetails assembles the SDK billing record from the collected
// addresses.
func (c *SubmissionCoordinator) billingDetails() payment.BillingDetails {
	_, billing := c.session.submissionAddresses()
	return payment.BillingDetails{
		Name:  fmt.Sprintf("%s %s", billing.FirstName, billing.LastName),
		Email: c.session.Email(),
		Phone: billing.Phone,
		Address: payment.BillingAddress{
			Line1:      fmt.Sprintf("%s %s", billing.Street, billing.HouseNumber),
			PostalCode: billing.ZIP,
			City:       billing.City,
			Country:    billing.Country,
		},
	}
}

func (c *SubmissionCoordinator) fail(attempt *SubmissionAttempt, failure *Failure) *SubmissionAttempt {
	attempt.Status = AttemptFailed
	attempt.Failure = failure
	utils.Warn("submit", "Submission failed", "session_id", c.session.ID,
		"attempt_id", attempt.ID, "kind", failure.Kind, "message", failure.Message)
	return attempt
}

// serverFailure maps a gateway error onto the failure taxonomy. A rejecting
// envelope carries the backend's user-facing message.
func serverFailure(err error) *Failure {
	var apiErr *wpajax.APIError
	if errors.As(err, &apiErr) {
		return &Failure{Kind: FailureNetwork, Message: apiErr.Message}
	}
	return &Failure{Kind: FailureNetwork, Message: msgOrderFailed}
}
