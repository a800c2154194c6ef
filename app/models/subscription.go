package models

import "time"

// Plan is the internal plan vocabulary. Prices for reporting live in the
// billing package's static catalog, never fetched from the provider.
type Plan string

const (
	PlanTrial        Plan = "trial"
	PlanFree         Plan = "free"
	PlanHome         Plan = "home"
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// SubscriptionStatus is the internal status vocabulary. Provider statuses
// are folded into it by the billing status mapper.
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled  SubscriptionStatus = "canceled"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
)

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// TrialDays is the fixed trial window granted at tenant provisioning and
// attached as checkout metadata while the subscription is still trialing.
const TrialDays = 14

// Subscription mirrors the provider's subscription state for one tenant.
// ExternalSubscriptionID is the idempotency key for webhook-sourced writes;
// rows are never hard-deleted, cancellation is a terminal status.
type Subscription struct {
	ID                     uint               `gorm:"primaryKey" json:"id"`
	TenantID               uint               `gorm:"not null;uniqueIndex" json:"tenant_id"`
	Plan                   Plan               `gorm:"type:varchar(32);not null;default:'trial';index" json:"plan"`
	Status                 SubscriptionStatus `gorm:"type:varchar(32);not null;default:'trial';index" json:"status"`
	ExternalCustomerID     string             `gorm:"type:varchar(191);default:null;index" json:"external_customer_id,omitempty"`
	ExternalSubscriptionID string             `gorm:"type:varchar(191);default:null;uniqueIndex" json:"external_subscription_id,omitempty"`
	CurrentPeriodStart     *time.Time         `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time         `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	TrialEndsAt            *time.Time         `gorm:"type:timestamp;default:null" json:"trial_ends_at,omitempty"`
	CancelAt               *time.Time         `gorm:"type:timestamp;default:null" json:"cancel_at,omitempty"`
	CanceledAt             *time.Time         `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	LastPaymentStatus      string             `gorm:"type:varchar(32);default:''" json:"last_payment_status,omitempty"`
	LastPaymentDate        *time.Time         `gorm:"type:timestamp;default:null" json:"last_payment_date,omitempty"`
	Seats                  int                `gorm:"not null;default:1" json:"seats"`
	BillingEmail           string             `gorm:"type:varchar(200);default:''" json:"billing_email,omitempty"`
	BillingName            string             `gorm:"type:varchar(150);default:''" json:"billing_name,omitempty"`
	CreatedAt              time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTrialing reports whether the subscription is still inside its trial
// window, which controls trial metadata on checkout sessions.
func (s *Subscription) IsTrialing() bool {
	return s.Status == SubscriptionStatusTrial
}
