package repository

import (
	"time"

	"github.com/cloudnetiq/planport/app/models"
	"gorm.io/gorm"
)

// alertRepository implements the AlertRepository interface
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new alert repository instance
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// Create stores a new alert
func (r *alertRepository) Create(alert *models.Alert) error {
	return r.db.Create(alert).Error
}

// GetByID retrieves an alert by its ID
func (r *alertRepository) GetByID(id uint) (*models.Alert, error) {
	var alert models.Alert
	err := r.db.First(&alert, id).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// GetByUserID retrieves all alerts for a user, newest first
func (r *alertRepository) GetByUserID(userID uint) ([]models.Alert, error) {
	var alerts []models.Alert
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&alerts).Error
	return alerts, err
}

// CountUnreadByUserID returns the user's unread alert count
func (r *alertRepository) CountUnreadByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Alert{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead flips the alert to read. Already-read alerts stay read.
func (r *alertRepository) MarkRead(alert *models.Alert) error {
	return alert.MarkAsRead(r.db)
}

// ExistsSince reports whether the user already received an alert of the
// given type after the cutoff (deduplication for recurring notices).
func (r *alertRepository) ExistsSince(userID uint, alertType string, since time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.Alert{}).
		Where("user_id = ? AND type = ? AND created_at >= ?", userID, alertType, since).
		Count(&count).Error
	return count > 0, err
}
