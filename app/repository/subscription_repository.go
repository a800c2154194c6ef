package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dineboard/dineboard/app/models"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *subscriptionRepository) GetByTenantID(tenantID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("tenant_id = ?", tenantID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByExternalCustomerID(customerID string) (*models.Subscription, error) {
	trimmed := strings.TrimSpace(customerID)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var sub models.Subscription
	err := r.db.Where("external_customer_id = ?", trimmed).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByExternalSubscriptionID(subscriptionID string) (*models.Subscription, error) {
	trimmed := strings.TrimSpace(subscriptionID)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var sub models.Subscription
	err := r.db.Where("external_subscription_id = ?", trimmed).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateFields is a single UPDATE keyed by primary key. Webhook handlers
// and user operations both funnel through here, which keeps the
// lost-update window to one statement.
func (r *subscriptionRepository) UpdateFields(subscriptionID uint, fields map[string]interface{}) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", subscriptionID).Updates(fields).Error
}

func (r *subscriptionRepository) UpsertInvoice(inv *models.Invoice) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "external_invoice_id"},
		},
		// Amounts stay as first written; replays update state only.
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"paid_at",
			"hosted_url",
			"pdf_url",
			"updated_at",
		}),
	}).Create(inv).Error; err != nil {
		return err
	}

	// Ensure ID reflects the stored row after upsert.
	return r.db.Where("external_invoice_id = ?", inv.ExternalInvoiceID).First(inv).Error
}

func (r *subscriptionRepository) ListInvoicesBySubscription(subscriptionID uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Find(&invoices).Error
	return invoices, err
}

func (r *subscriptionRepository) CreateUsageRecord(rec *models.UsageRecord) error {
	return r.db.Create(rec).Error
}

func (r *subscriptionRepository) SumUsageSince(subscriptionID uint, metric string, since time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("subscription_id = ? AND metric = ? AND recorded_at >= ?", subscriptionID, metric, since).
		Scan(&total).Error
	return total, err
}

func (r *subscriptionRepository) ListByStatus(statuses ...models.SubscriptionStatus) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status IN ?", statuses).Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) CountByStatus(statuses ...models.SubscriptionStatus) (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Where("status IN ?", statuses).Count(&count).Error
	return count, err
}

func (r *subscriptionRepository) CountCanceledSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).
		Where("status = ? AND canceled_at >= ?", models.SubscriptionStatusCanceled, since).
		Count(&count).Error
	return count, err
}

func (r *subscriptionRepository) RecordWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider_event_id = ?", event.ProviderEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *subscriptionRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
