package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"github.com/dineboard/dineboard/app/models"
	"github.com/dineboard/dineboard/app/repository"
)

// eventKind is the closed set of webhook event kinds this engine handles.
// Dispatch goes through exactly one switch over these constants, so adding
// a kind forces a handler decision at compile time.
type eventKind int

const (
	eventIgnored eventKind = iota
	eventSubscriptionCreated
	eventSubscriptionUpdated
	eventSubscriptionDeleted
	eventInvoicePaymentSucceeded
	eventInvoicePaymentFailed
	eventTrialWillEnd
)

// eventKinds is the full dispatch contract. Event types absent here are
// acknowledged without action; failing them would only cause the provider
// to retry deliveries we intentionally ignore.
var eventKinds = map[string]eventKind{
	"customer.subscription.created":        eventSubscriptionCreated,
	"customer.subscription.updated":        eventSubscriptionUpdated,
	"customer.subscription.deleted":        eventSubscriptionDeleted,
	"invoice.payment_succeeded":            eventInvoicePaymentSucceeded,
	"invoice.payment_failed":               eventInvoicePaymentFailed,
	"customer.subscription.trial_will_end": eventTrialWillEnd,
}

// TrialNotifier delivers the trial-ending notice. The webhook handler only
// triggers it; delivery failures are logged, never surfaced to the
// provider.
type TrialNotifier interface {
	TrialWillEnd(email, tenantName string, endsAt *time.Time) error
}

// WebhookEventProcessor reconciles provider-reported state into local
// Subscription/Invoice rows. Every handler re-derives absolute state from
// the payload and writes it with a single idempotent statement, so
// redelivery of the same event converges to the same final rows.
type WebhookEventProcessor struct {
	repo     repository.SubscriptionRepository
	prices   *PriceTable
	notifier TrialNotifier
	now      func() time.Time
}

// NewWebhookEventProcessor wires the processor; notifier may be nil when
// trial notices are disabled.
func NewWebhookEventProcessor(repo repository.SubscriptionRepository, prices *PriceTable, notifier TrialNotifier) *WebhookEventProcessor {
	return &WebhookEventProcessor{
		repo:     repo,
		prices:   prices,
		notifier: notifier,
		now:      time.Now,
	}
}

// Process journals the delivery, dispatches it, and records the outcome.
// A redelivery of an event that already processed cleanly is absorbed as a
// duplicate; a redelivery after a failed attempt runs the handler again so
// the provider's retry contract stays intact.
func (p *WebhookEventProcessor) Process(ctx context.Context, event *stripe.Event) error {
	payload, _ := json.Marshal(event)
	created, stored, err := p.repo.RecordWebhookEvent(&models.WebhookEvent{
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
	})
	if err != nil {
		return fmt.Errorf("billing: journal webhook event %s: %w", event.ID, err)
	}
	if !created && stored.Processed() {
		log.Infof("billing: duplicate webhook event %s (%s), already processed", event.ID, event.Type)
		return nil
	}

	dispatchErr := p.dispatch(ctx, event)

	errMsg := ""
	if dispatchErr != nil {
		errMsg = dispatchErr.Error()
	}
	if markErr := p.repo.MarkWebhookProcessed(stored.ID, errMsg); markErr != nil {
		log.Errorf("billing: mark webhook event %s processed: %v", event.ID, markErr)
	}
	return dispatchErr
}

func (p *WebhookEventProcessor) dispatch(ctx context.Context, event *stripe.Event) error {
	switch eventKinds[string(event.Type)] {
	case eventSubscriptionCreated:
		return p.handleSubscriptionCreated(ctx, event)
	case eventSubscriptionUpdated:
		return p.handleSubscriptionUpdated(ctx, event)
	case eventSubscriptionDeleted:
		return p.handleSubscriptionDeleted(ctx, event)
	case eventInvoicePaymentSucceeded:
		return p.handleInvoicePaymentSucceeded(ctx, event)
	case eventInvoicePaymentFailed:
		return p.handleInvoicePaymentFailed(ctx, event)
	case eventTrialWillEnd:
		return p.handleTrialWillEnd(ctx, event)
	default:
		// eventIgnored and anything the map does not know about.
		log.Infof("billing: ignoring webhook event type %s", event.Type)
		return nil
	}
}

// handleSubscriptionCreated attaches the provider subscription to the
// local row created at tenant onboarding, found via the customer id. No
// local row means the event belongs to a foreign or deleted tenant; it is
// dropped, never turned into a new Subscription.
func (p *WebhookEventProcessor) handleSubscriptionCreated(_ context.Context, event *stripe.Event) error {
	providerSub, err := unmarshalSubscription(event)
	if err != nil {
		return err
	}

	local, err := p.repo.GetByExternalCustomerID(customerID(providerSub))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("billing: subscription.created for unknown customer %s, dropping", customerID(providerSub))
			return nil
		}
		return err
	}

	fields := map[string]interface{}{
		"external_subscription_id": providerSub.ID,
		"status":                   MapStatus(string(providerSub.Status)),
	}
	applyPeriodBounds(fields, providerSub)
	applyCancelAt(fields, providerSub)
	applyTrialEnd(fields, providerSub)

	return p.repo.UpdateFields(local.ID, fields)
}

// handleSubscriptionUpdated re-derives the full absolute state from the
// payload. Because nothing here is a delta, replaying the same event or
// overwriting an optimistic local cancel write both converge on the
// provider's reported state.
func (p *WebhookEventProcessor) handleSubscriptionUpdated(_ context.Context, event *stripe.Event) error {
	providerSub, err := unmarshalSubscription(event)
	if err != nil {
		return err
	}

	local, err := p.repo.GetByExternalSubscriptionID(providerSub.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("billing: subscription.updated for unknown subscription %s, dropping", providerSub.ID)
			return nil
		}
		return err
	}

	fields := map[string]interface{}{
		"status": MapStatus(string(providerSub.Status)),
	}
	if plan, ok := p.prices.PlanForPrice(firstPriceID(providerSub)); ok {
		fields["plan"] = plan
	}
	applyPeriodBounds(fields, providerSub)
	applyCancelAt(fields, providerSub)
	applyTrialEnd(fields, providerSub)
	applyCanceledAt(fields, providerSub)

	return p.repo.UpdateFields(local.ID, fields)
}

// handleSubscriptionDeleted marks the terminal state. A missing local row
// is a warning-level no-op: the subscription is already terminal locally
// or never belonged to this installation.
func (p *WebhookEventProcessor) handleSubscriptionDeleted(_ context.Context, event *stripe.Event) error {
	providerSub, err := unmarshalSubscription(event)
	if err != nil {
		return err
	}

	local, err := p.repo.GetByExternalSubscriptionID(providerSub.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("billing: subscription.deleted for unknown subscription %s, nothing to do", providerSub.ID)
			return nil
		}
		return err
	}

	now := p.now()
	return p.repo.UpdateFields(local.ID, map[string]interface{}{
		"status":      models.SubscriptionStatusCanceled,
		"canceled_at": &now,
	})
}

// handleInvoicePaymentSucceeded upserts the invoice row keyed on the
// provider invoice id and stamps the payment result on the subscription.
// Both writes are independently idempotent, so a retry after a partial
// completion reaches the same final state.
func (p *WebhookEventProcessor) handleInvoicePaymentSucceeded(_ context.Context, event *stripe.Event) error {
	providerInv, err := unmarshalInvoice(event)
	if err != nil {
		return err
	}

	local, err := p.repo.GetByExternalSubscriptionID(invoiceSubscriptionID(providerInv))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("billing: invoice.payment_succeeded for unknown subscription %s, dropping", invoiceSubscriptionID(providerInv))
			return nil
		}
		return err
	}

	now := p.now()
	paidAt := &now
	if providerInv.StatusTransitions != nil && providerInv.StatusTransitions.PaidAt > 0 {
		paidAt = unixTime(providerInv.StatusTransitions.PaidAt)
	}

	inv := &models.Invoice{
		SubscriptionID:    local.ID,
		ExternalInvoiceID: providerInv.ID,
		Status:            models.InvoiceStatusPaid,
		Amount:            providerInv.Subtotal,
		Tax:               providerInv.Tax,
		Total:             providerInv.Total,
		Currency:          string(providerInv.Currency),
		PaidAt:            paidAt,
		HostedURL:         providerInv.HostedInvoiceURL,
		PDFURL:            providerInv.InvoicePDF,
	}
	if providerInv.PeriodStart > 0 {
		inv.PeriodStart = unixTime(providerInv.PeriodStart)
	}
	if providerInv.PeriodEnd > 0 {
		inv.PeriodEnd = unixTime(providerInv.PeriodEnd)
	}
	if err := p.repo.UpsertInvoice(inv); err != nil {
		return err
	}

	return p.repo.UpdateFields(local.ID, map[string]interface{}{
		"last_payment_status": models.PaymentStatusSucceeded,
		"last_payment_date":   &now,
	})
}

// handleInvoicePaymentFailed moves the subscription to PAST_DUE. No
// invoice row is required; the provider keeps retrying the charge and a
// later success writes the real invoice.
func (p *WebhookEventProcessor) handleInvoicePaymentFailed(_ context.Context, event *stripe.Event) error {
	providerInv, err := unmarshalInvoice(event)
	if err != nil {
		return err
	}

	local, err := p.repo.GetByExternalSubscriptionID(invoiceSubscriptionID(providerInv))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("billing: invoice.payment_failed for unknown subscription %s, dropping", invoiceSubscriptionID(providerInv))
			return nil
		}
		return err
	}

	now := p.now()
	return p.repo.UpdateFields(local.ID, map[string]interface{}{
		"status":              models.SubscriptionStatusPastDue,
		"last_payment_status": models.PaymentStatusFailed,
		"last_payment_date":   &now,
	})
}

// handleTrialWillEnd is lookup plus notification only; it never mutates
// billing state.
func (p *WebhookEventProcessor) handleTrialWillEnd(_ context.Context, event *stripe.Event) error {
	providerSub, err := unmarshalSubscription(event)
	if err != nil {
		return err
	}

	local, err := p.repo.GetByExternalSubscriptionID(providerSub.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("billing: trial_will_end for unknown subscription %s, nothing to do", providerSub.ID)
			return nil
		}
		return err
	}

	if p.notifier == nil || local.BillingEmail == "" {
		return nil
	}
	var endsAt *time.Time
	if providerSub.TrialEnd > 0 {
		endsAt = unixTime(providerSub.TrialEnd)
	}
	if err := p.notifier.TrialWillEnd(local.BillingEmail, local.BillingName, endsAt); err != nil {
		log.Errorf("billing: trial notice for subscription %d failed: %v", local.ID, err)
	}
	return nil
}

func unmarshalSubscription(event *stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("billing: unmarshal subscription from event %s: %w", event.ID, err)
	}
	return &sub, nil
}

func unmarshalInvoice(event *stripe.Event) (*stripe.Invoice, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, fmt.Errorf("billing: unmarshal invoice from event %s: %w", event.ID, err)
	}
	return &inv, nil
}

func customerID(sub *stripe.Subscription) string {
	if sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}

func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Subscription == nil {
		return ""
	}
	return inv.Subscription.ID
}

func firstPriceID(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}

func applyPeriodBounds(fields map[string]interface{}, sub *stripe.Subscription) {
	if sub.CurrentPeriodStart > 0 {
		fields["current_period_start"] = unixTime(sub.CurrentPeriodStart)
	}
	if sub.CurrentPeriodEnd > 0 {
		fields["current_period_end"] = unixTime(sub.CurrentPeriodEnd)
	}
}

func applyCancelAt(fields map[string]interface{}, sub *stripe.Subscription) {
	if sub.CancelAt > 0 {
		fields["cancel_at"] = unixTime(sub.CancelAt)
	} else if !sub.CancelAtPeriodEnd {
		fields["cancel_at"] = nil
	}
}

// applyCanceledAt mirrors applyCancelAt: a reverted period-end
// cancellation reports zero and must clear the local marker, not leave it
// stale.
func applyCanceledAt(fields map[string]interface{}, sub *stripe.Subscription) {
	if sub.CanceledAt > 0 {
		fields["canceled_at"] = unixTime(sub.CanceledAt)
	} else {
		fields["canceled_at"] = nil
	}
}

func applyTrialEnd(fields map[string]interface{}, sub *stripe.Subscription) {
	// trial_ends_at only carries meaning while the provider reports
	// trialing; conversion out of trial clears it.
	if MapStatus(string(sub.Status)) == models.SubscriptionStatusTrial {
		if sub.TrialEnd > 0 {
			fields["trial_ends_at"] = unixTime(sub.TrialEnd)
		}
		return
	}
	fields["trial_ends_at"] = nil
}

func unixTime(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}
