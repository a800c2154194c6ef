package billing

import "errors"

// Error taxonomy for the billing surface. Handlers translate these to HTTP
// statuses; everything else is an unexpected failure and propagates.
var (
	// ErrSignatureInvalid rejects a webhook delivery before any state change.
	ErrSignatureInvalid = errors.New("billing: webhook signature invalid")

	// ErrGatewayUnavailable means the provider client was never configured
	// (missing API key). A configuration error, never retried internally.
	ErrGatewayUnavailable = errors.New("billing: payment gateway not configured")

	// ErrGatewayTimeout means the outbound provider call exceeded its
	// deadline. Transient; the user-facing action may be retried.
	ErrGatewayTimeout = errors.New("billing: payment gateway timeout")

	// ErrNoBillingAccount means the tenant has no provider customer yet.
	ErrNoBillingAccount = errors.New("billing: no billing account for tenant")

	// ErrNoActiveSubscription means the tenant has no provider subscription
	// attached yet.
	ErrNoActiveSubscription = errors.New("billing: no active subscription for tenant")

	// ErrUnknownPlan means the requested plan has no configured provider
	// price id.
	ErrUnknownPlan = errors.New("billing: unknown plan")
)
