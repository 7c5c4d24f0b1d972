package config

import "time"

const (
	// MaxElementAttempts is the maximum number of tries to bring a hosted
	// payment element up before giving up for the session.
	MaxElementAttempts = 5

	// ElementRetryDelay is the fixed delay between element readiness attempts.
	ElementRetryDelay = 750 * time.Millisecond

	// CredentialTimeout bounds the payment-credential creation call. The SDK
	// can hang silently, so this is enforced client-side and is distinct from
	// any network timeout.
	CredentialTimeout = 12 * time.Second

	// CartCacheTTL is the freshness window for cached cart totals.
	CartCacheTTL = 30 * time.Second

	// SessionTimeout is how long an idle checkout session is kept alive.
	SessionTimeout = 30 * time.Minute

	// SessionCleanupInterval is how often expired sessions are reaped.
	SessionCleanupInterval = 5 * time.Minute

	// AjaxRequestTimeout bounds a single request to the WordPress backend.
	AjaxRequestTimeout = 20 * time.Second
)
