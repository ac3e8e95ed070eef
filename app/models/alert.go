package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AlertTypePlanExpiry      = "plan_expiry"
	AlertTypeSystem          = "system"
	AlertTypeBillingReminder = "billing_reminder"
	AlertTypeUsageWarning    = "usage_warning"
)

// Alert is a per-user notification record. Only the owning user may mutate
// it, and only via mark-as-read; an alert never transitions back to unread.
type Alert struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	User      User           `gorm:"foreignKey:UserID" json:"-"`
	Type      string         `gorm:"type:varchar(50)" json:"type" validate:"oneof=plan_expiry system billing_reminder usage_warning"`
	Title     string         `gorm:"type:varchar(200)" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	IsRead    bool           `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarkAsRead flips the alert to read. Marking an already-read alert is a
// no-op write and succeeds.
func (a *Alert) MarkAsRead(db *gorm.DB) error {
	a.IsRead = true
	return db.Model(a).Update("is_read", true).Error
}

// CreateAlert stores a new unread alert for the given user.
func CreateAlert(db *gorm.DB, userID uint, alertType string, title string, message string) error {
	alert := Alert{
		UserID:  userID,
		Type:    alertType,
		Title:   title,
		Message: message,
		IsRead:  false,
	}

	return db.Create(&alert).Error
}
