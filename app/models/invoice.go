package models

import "time"

const (
	InvoiceStatusDraft  = "draft"
	InvoiceStatusPaid   = "paid"
	InvoiceStatusFailed = "failed"
)

// Invoice mirrors one provider invoice. ExternalInvoiceID is the upsert
// key; amounts are immutable once the row exists, replays may only touch
// status, paid timestamp and document URLs.
type Invoice struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	SubscriptionID    uint         `gorm:"not null;index" json:"subscription_id"`
	Subscription      Subscription `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ExternalInvoiceID string       `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_invoice_id"`
	Status            string       `gorm:"type:varchar(32);not null;default:'draft'" json:"status"`
	Amount            int64        `gorm:"not null;default:0" json:"amount"`
	Tax               int64        `gorm:"not null;default:0" json:"tax"`
	Total             int64        `gorm:"not null;default:0" json:"total"`
	Currency          string       `gorm:"type:varchar(8);not null;default:'eur'" json:"currency"`
	PeriodStart       *time.Time   `gorm:"type:timestamp;default:null" json:"period_start,omitempty"`
	PeriodEnd         *time.Time   `gorm:"type:timestamp;default:null" json:"period_end,omitempty"`
	PaidAt            *time.Time   `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	HostedURL         string       `gorm:"type:varchar(500);default:''" json:"hosted_url,omitempty"`
	PDFURL            string       `gorm:"type:varchar(500);default:''" json:"pdf_url,omitempty"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}
