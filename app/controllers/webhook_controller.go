package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/dineboard/dineboard/internal/pkg/billing"
)

// WebhookController terminates provider webhook deliveries. It reads the
// raw body because signature verification covers the exact bytes sent;
// parsing first would invalidate every signature.
type WebhookController struct {
	verifier  *billing.SignatureVerifier
	processor *billing.WebhookEventProcessor
}

// NewWebhookController wires the controller once at route installation.
func NewWebhookController(verifier *billing.SignatureVerifier, processor *billing.WebhookEventProcessor) *WebhookController {
	return &WebhookController{
		verifier:  verifier,
		processor: processor,
	}
}

// HandlePaymentWebhook verifies, dispatches and acknowledges one delivery.
// 400 rejects bad signatures without state change; 500 makes the provider
// redeliver after a handler failure; everything else, including events we
// intentionally ignore, is a 200 so the provider stops retrying.
func (ctl *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	event, err := ctl.verifier.Verify(rawBody, signature)
	if err != nil {
		log.Warnf("webhook signature rejected: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	if err := ctl.processor.Process(c.Context(), event); err != nil {
		log.Errorf("webhook event %s (%s) failed: %v", event.ID, event.Type, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	return c.JSON(fiber.Map{"received": true})
}
