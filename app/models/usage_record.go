package models

import (
	"time"
)

// UsageRecord is one metered data-usage sample for a subscription. Samples
// accumulate within a billing cycle; the sum against the plan quota drives
// usage warnings and plan recommendations.
type UsageRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"not null;index" json:"subscription_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	UsedGB         float64   `gorm:"not null" json:"used_gb"`
	RecordedAt     time.Time `gorm:"not null;index" json:"recorded_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"-"`
}
