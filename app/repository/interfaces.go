package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/dineboard/dineboard/app/models"
)

// TenantRepository defines tenant provisioning and lookup operations.
type TenantRepository interface {
	// Provision creates the tenant together with its initial TRIAL
	// subscription in one transaction; a crash leaves neither row behind.
	Provision(tenant *models.Tenant, trialDays int) (*models.Subscription, error)
	GetByID(id uint) (*models.Tenant, error)
	GetByUUID(uuid string) (*models.Tenant, error)
}

// SubscriptionRepository is the persistence boundary for the billing
// engine. Webhook handlers and user-triggered operations are concurrent
// writers here, so every write is a single idempotent statement keyed by a
// stable identifier, never a multi-roundtrip read-modify-write.
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByTenantID(tenantID uint) (*models.Subscription, error)
	GetByExternalCustomerID(customerID string) (*models.Subscription, error)
	GetByExternalSubscriptionID(subscriptionID string) (*models.Subscription, error)
	// UpdateFields applies a partial update to one subscription row.
	UpdateFields(subscriptionID uint, fields map[string]interface{}) error

	// UpsertInvoice creates or updates the row keyed by ExternalInvoiceID.
	// Amounts are immutable after creation; replays only touch status,
	// paid timestamp and document URLs.
	UpsertInvoice(inv *models.Invoice) error
	ListInvoicesBySubscription(subscriptionID uint) ([]models.Invoice, error)

	CreateUsageRecord(rec *models.UsageRecord) error
	SumUsageSince(subscriptionID uint, metric string, since time.Time) (int64, error)

	ListByStatus(statuses ...models.SubscriptionStatus) ([]models.Subscription, error)
	CountByStatus(statuses ...models.SubscriptionStatus) (int64, error)
	CountCanceledSince(since time.Time) (int64, error)

	// RecordWebhookEvent journals a delivery keyed by provider event id.
	// Returns created=false with the stored row for duplicate deliveries.
	RecordWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Tenant       TenantRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tenant:       NewTenantRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}
