package billing

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"github.com/dineboard/dineboard/app/models"
)

// fakeRepo is an in-memory SubscriptionRepository used across the billing
// tests. It mirrors the idempotency semantics of the GORM implementation:
// invoice upserts keyed on external id, webhook journal keyed on provider
// event id.
type fakeRepo struct {
	mu            sync.Mutex
	subs          map[uint]*models.Subscription
	invoices      map[string]*models.Invoice
	usage         []models.UsageRecord
	events        map[string]*models.WebhookEvent
	nextSubID     uint
	nextInvoiceID uint
	nextEventID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subs:     make(map[uint]*models.Subscription),
		invoices: make(map[string]*models.Invoice),
		events:   make(map[string]*models.WebhookEvent),
	}
}

func (r *fakeRepo) Create(sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSubID++
	sub.ID = r.nextSubID
	clone := *sub
	r.subs[sub.ID] = &clone
	return nil
}

func (r *fakeRepo) GetByTenantID(tenantID uint) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.TenantID == tenantID {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetByExternalCustomerID(customerID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if customerID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, sub := range r.subs {
		if sub.ExternalCustomerID == customerID {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetByExternalSubscriptionID(subscriptionID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subscriptionID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, sub := range r.subs {
		if sub.ExternalSubscriptionID == subscriptionID {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) UpdateFields(subscriptionID uint, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[subscriptionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range fields {
		switch key {
		case "status":
			sub.Status = value.(models.SubscriptionStatus)
		case "plan":
			sub.Plan = value.(models.Plan)
		case "external_subscription_id":
			sub.ExternalSubscriptionID = value.(string)
		case "external_customer_id":
			sub.ExternalCustomerID = value.(string)
		case "last_payment_status":
			sub.LastPaymentStatus = value.(string)
		case "current_period_start":
			sub.CurrentPeriodStart = asTimePtr(value)
		case "current_period_end":
			sub.CurrentPeriodEnd = asTimePtr(value)
		case "trial_ends_at":
			sub.TrialEndsAt = asTimePtr(value)
		case "cancel_at":
			sub.CancelAt = asTimePtr(value)
		case "canceled_at":
			sub.CanceledAt = asTimePtr(value)
		case "last_payment_date":
			sub.LastPaymentDate = asTimePtr(value)
		default:
			return fmt.Errorf("fakeRepo: unexpected field %q", key)
		}
	}
	return nil
}

func asTimePtr(v interface{}) *time.Time {
	if v == nil {
		return nil
	}
	return v.(*time.Time)
}

func (r *fakeRepo) UpsertInvoice(inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.invoices[inv.ExternalInvoiceID]; ok {
		existing.Status = inv.Status
		existing.PaidAt = inv.PaidAt
		existing.HostedURL = inv.HostedURL
		existing.PDFURL = inv.PDFURL
		*inv = *existing
		return nil
	}
	r.nextInvoiceID++
	inv.ID = r.nextInvoiceID
	clone := *inv
	r.invoices[inv.ExternalInvoiceID] = &clone
	return nil
}

func (r *fakeRepo) ListInvoicesBySubscription(subscriptionID uint) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Invoice
	for _, inv := range r.invoices {
		if inv.SubscriptionID == subscriptionID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateUsageRecord(rec *models.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = uint(len(r.usage) + 1)
	rec.RecordedAt = time.Now()
	r.usage = append(r.usage, *rec)
	return nil
}

func (r *fakeRepo) SumUsageSince(subscriptionID uint, metric string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, rec := range r.usage {
		if rec.SubscriptionID == subscriptionID && rec.Metric == metric && !rec.RecordedAt.Before(since) {
			total += rec.Quantity
		}
	}
	return total, nil
}

func (r *fakeRepo) ListByStatus(statuses ...models.SubscriptionStatus) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, sub := range r.subs {
		for _, status := range statuses {
			if sub.Status == status {
				out = append(out, *sub)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) CountByStatus(statuses ...models.SubscriptionStatus) (int64, error) {
	subs, _ := r.ListByStatus(statuses...)
	return int64(len(subs)), nil
}

func (r *fakeRepo) CountCanceledSince(since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, sub := range r.subs {
		if sub.Status == models.SubscriptionStatusCanceled && sub.CanceledAt != nil && !sub.CanceledAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) RecordWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.events[event.ProviderEventID]; ok {
		clone := *stored
		return false, &clone, nil
	}
	r.nextEventID++
	event.ID = r.nextEventID
	clone := *event
	r.events[event.ProviderEventID] = &clone
	out := clone
	return true, &out, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// sub returns the live stored subscription for assertions.
func (r *fakeRepo) sub(id uint) *models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[id]
}

func (r *fakeRepo) invoiceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invoices)
}

// seed installs a subscription with a fixed id and returns it.
func (r *fakeRepo) seed(sub models.Subscription) *models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSubID++
	sub.ID = r.nextSubID
	r.subs[sub.ID] = &sub
	return &sub
}

// newEvent builds a provider event with the object payload inlined.
func newEvent(id, eventType, objectJSON string) *stripe.Event {
	return &stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{
			Raw: json.RawMessage(objectJSON),
		},
	}
}
