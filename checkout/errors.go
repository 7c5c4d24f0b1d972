package checkout

import (
	"errors"
	"fmt"
)

// FailureKind classifies a checkout failure for the UI layer.
type FailureKind string

const (
	// FailureValidation covers missing address fields and incomplete payment
	// input. Recoverable by editing the input; shown inline.
	FailureValidation FailureKind = "validation"

	// FailureSDKUnavailable means the payment SDK never became ready.
	// Terminal for the session; the user must reload the page.
	FailureSDKUnavailable FailureKind = "sdk_unavailable"

	// FailureCredential means the SDK rejected the payment input.
	// Recoverable by correcting the input and resubmitting.
	FailureCredential FailureKind = "credential"

	// FailureNetwork covers transport failures and server rejections during
	// order finalization. Recoverable by retrying the submission.
	FailureNetwork FailureKind = "network"
)

// Failure is a user-presentable checkout failure. Lower layers return it as a
// value; only the step controller and submission coordinator render it.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	if f.Field != "" {
		return fmt.Sprintf("%s failure on %s: %s", f.Kind, f.Field, f.Message)
	}
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Message)
}

// User-facing messages for failures not produced by the backend.
const (
	msgReloadPage          = "The payment form could not be loaded. Please reload the page and try again."
	msgCommunication       = "Communication problem with the payment service. Please try again."
	msgIncompleteInput     = "Please complete your payment details."
	msgSubmissionInFlight  = "A payment is already being processed."
	msgOrderFailed         = "The order could not be completed. Please try again."
	msgExpressNoCredential = "No payment was provided by the browser payment sheet."
)

// ErrSessionNotFound is returned for unknown or expired checkout sessions.
var ErrSessionNotFound = errors.New("checkout session not found")
