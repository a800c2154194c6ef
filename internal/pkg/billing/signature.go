package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/dineboard/dineboard/internal/pkg/env"
)

// SignatureVerifier authenticates raw webhook payloads. Two secrets are
// supported so the signing secret can be rotated without dropping
// deliveries: the primary is tried first, the secondary only on primary
// failure. With no secrets configured, verification fails closed.
type SignatureVerifier struct {
	primary   string
	secondary string
}

// NewSignatureVerifier builds a verifier from explicit secrets.
func NewSignatureVerifier(primary, secondary string) *SignatureVerifier {
	return &SignatureVerifier{
		primary:   strings.TrimSpace(primary),
		secondary: strings.TrimSpace(secondary),
	}
}

// NewSignatureVerifierFromEnv reads the configured webhook secrets.
func NewSignatureVerifierFromEnv() *SignatureVerifier {
	return NewSignatureVerifier(
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		env.GetEnv("STRIPE_WEBHOOK_SECRET_SECONDARY", ""),
	)
}

// Verify checks the signature header against the configured secrets and
// returns the typed event on success. The raw body must be the exact bytes
// the provider sent; any re-serialization breaks the signature.
func (v *SignatureVerifier) Verify(rawBody []byte, signatureHeader string) (*stripe.Event, error) {
	if v.primary == "" && v.secondary == "" {
		return nil, fmt.Errorf("%w: no webhook secret configured", ErrSignatureInvalid)
	}

	var lastErr error
	for _, secret := range []string{v.primary, v.secondary} {
		if secret == "" {
			continue
		}
		// The provider pins webhook payloads to the API version selected in
		// its dashboard, which may trail the SDK's version.
		event, err := webhook.ConstructEventWithOptions(rawBody, signatureHeader, secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err == nil {
			return &event, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, lastErr)
}
