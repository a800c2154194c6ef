package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/dineboard/dineboard/app/models"
)

// tenantRepository implements the TenantRepository interface
type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new tenant repository instance
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// Provision creates the tenant and its implicit TRIAL subscription
// together. An admin-issued trial grant is the same call with a custom
// trialDays window.
func (r *tenantRepository) Provision(tenant *models.Tenant, trialDays int) (*models.Subscription, error) {
	if trialDays <= 0 {
		trialDays = models.TrialDays
	}
	trialEnd := time.Now().AddDate(0, 0, trialDays)

	sub := &models.Subscription{
		Plan:         models.PlanTrial,
		Status:       models.SubscriptionStatusTrial,
		TrialEndsAt:  &trialEnd,
		Seats:        1,
		BillingEmail: tenant.OwnerEmail,
		BillingName:  tenant.Name,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		sub.TenantID = tenant.ID
		return tx.Create(sub).Error
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *tenantRepository) GetByID(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.First(&tenant, id).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) GetByUUID(uuid string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.Where("uuid = ?", uuid).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}
