package controllers

import (
	"time"

	"gorm.io/gorm"

	"github.com/dineboard/dineboard/app/models"
)

// stubTenantRepo resolves exactly one tenant and records provisioning.
type stubTenantRepo struct {
	tenant      *models.Tenant
	provisioned *models.Tenant
}

func (s *stubTenantRepo) Provision(tenant *models.Tenant, trialDays int) (*models.Subscription, error) {
	if trialDays <= 0 {
		trialDays = models.TrialDays
	}
	tenant.ID = 1
	tenant.UUID = "11111111-2222-3333-4444-555555555555"
	s.provisioned = tenant
	trialEnd := time.Now().AddDate(0, 0, trialDays)
	return &models.Subscription{
		ID:          1,
		TenantID:    tenant.ID,
		Plan:        models.PlanTrial,
		Status:      models.SubscriptionStatusTrial,
		TrialEndsAt: &trialEnd,
	}, nil
}

func (s *stubTenantRepo) GetByID(id uint) (*models.Tenant, error) {
	if s.tenant != nil && s.tenant.ID == id {
		return s.tenant, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubTenantRepo) GetByUUID(uuid string) (*models.Tenant, error) {
	if s.tenant != nil && s.tenant.UUID == uuid {
		return s.tenant, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// stubSubscriptionRepo holds at most one subscription row plus the webhook
// journal, enough to drive the HTTP surface end to end.
type stubSubscriptionRepo struct {
	sub      *models.Subscription
	invoices []models.Invoice
	events   map[string]*models.WebhookEvent
	usage    []models.UsageRecord
}

func newStubSubscriptionRepo(sub *models.Subscription) *stubSubscriptionRepo {
	return &stubSubscriptionRepo{
		sub:    sub,
		events: make(map[string]*models.WebhookEvent),
	}
}

func (s *stubSubscriptionRepo) Create(sub *models.Subscription) error {
	sub.ID = 1
	s.sub = sub
	return nil
}

func (s *stubSubscriptionRepo) GetByTenantID(tenantID uint) (*models.Subscription, error) {
	if s.sub != nil && s.sub.TenantID == tenantID {
		return s.sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSubscriptionRepo) GetByExternalCustomerID(customerID string) (*models.Subscription, error) {
	if customerID != "" && s.sub != nil && s.sub.ExternalCustomerID == customerID {
		return s.sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSubscriptionRepo) GetByExternalSubscriptionID(subscriptionID string) (*models.Subscription, error) {
	if subscriptionID != "" && s.sub != nil && s.sub.ExternalSubscriptionID == subscriptionID {
		return s.sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSubscriptionRepo) UpdateFields(subscriptionID uint, fields map[string]interface{}) error {
	if s.sub == nil || s.sub.ID != subscriptionID {
		return gorm.ErrRecordNotFound
	}
	for key, value := range fields {
		switch key {
		case "status":
			s.sub.Status = value.(models.SubscriptionStatus)
		case "plan":
			s.sub.Plan = value.(models.Plan)
		case "external_subscription_id":
			s.sub.ExternalSubscriptionID = value.(string)
		case "external_customer_id":
			s.sub.ExternalCustomerID = value.(string)
		case "last_payment_status":
			s.sub.LastPaymentStatus = value.(string)
		case "current_period_start":
			s.sub.CurrentPeriodStart = stubTime(value)
		case "current_period_end":
			s.sub.CurrentPeriodEnd = stubTime(value)
		case "trial_ends_at":
			s.sub.TrialEndsAt = stubTime(value)
		case "cancel_at":
			s.sub.CancelAt = stubTime(value)
		case "canceled_at":
			s.sub.CanceledAt = stubTime(value)
		case "last_payment_date":
			s.sub.LastPaymentDate = stubTime(value)
		}
	}
	return nil
}

func stubTime(v interface{}) *time.Time {
	if v == nil {
		return nil
	}
	return v.(*time.Time)
}

func (s *stubSubscriptionRepo) UpsertInvoice(inv *models.Invoice) error {
	for i := range s.invoices {
		if s.invoices[i].ExternalInvoiceID == inv.ExternalInvoiceID {
			s.invoices[i].Status = inv.Status
			s.invoices[i].PaidAt = inv.PaidAt
			*inv = s.invoices[i]
			return nil
		}
	}
	inv.ID = uint(len(s.invoices) + 1)
	s.invoices = append(s.invoices, *inv)
	return nil
}

func (s *stubSubscriptionRepo) ListInvoicesBySubscription(subscriptionID uint) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range s.invoices {
		if inv.SubscriptionID == subscriptionID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *stubSubscriptionRepo) CreateUsageRecord(rec *models.UsageRecord) error {
	rec.ID = uint(len(s.usage) + 1)
	s.usage = append(s.usage, *rec)
	return nil
}

func (s *stubSubscriptionRepo) SumUsageSince(subscriptionID uint, metric string, since time.Time) (int64, error) {
	var total int64
	for _, rec := range s.usage {
		if rec.SubscriptionID == subscriptionID && rec.Metric == metric {
			total += rec.Quantity
		}
	}
	return total, nil
}

func (s *stubSubscriptionRepo) ListByStatus(statuses ...models.SubscriptionStatus) ([]models.Subscription, error) {
	var out []models.Subscription
	if s.sub != nil {
		for _, status := range statuses {
			if s.sub.Status == status {
				out = append(out, *s.sub)
				break
			}
		}
	}
	return out, nil
}

func (s *stubSubscriptionRepo) CountByStatus(statuses ...models.SubscriptionStatus) (int64, error) {
	subs, _ := s.ListByStatus(statuses...)
	return int64(len(subs)), nil
}

func (s *stubSubscriptionRepo) CountCanceledSince(since time.Time) (int64, error) {
	if s.sub != nil && s.sub.Status == models.SubscriptionStatusCanceled &&
		s.sub.CanceledAt != nil && !s.sub.CanceledAt.Before(since) {
		return 1, nil
	}
	return 0, nil
}

func (s *stubSubscriptionRepo) RecordWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if stored, ok := s.events[event.ProviderEventID]; ok {
		return false, stored, nil
	}
	event.ID = uint(len(s.events) + 1)
	s.events[event.ProviderEventID] = event
	return true, event, nil
}

func (s *stubSubscriptionRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, event := range s.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}
