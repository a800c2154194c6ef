package models

import "time"

// UsageRecord is an append-only metering event scoped to a subscription.
// Rows are written once and only ever read back by analytics.
type UsageRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"not null;index" json:"subscription_id"`
	Metric         string    `gorm:"type:varchar(100);not null;index" json:"metric"`
	Quantity       int64     `gorm:"not null;default:1" json:"quantity"`
	RecordedAt     time.Time `gorm:"autoCreateTime;index" json:"recorded_at"`
}
