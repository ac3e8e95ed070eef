package repository

import (
	"github.com/cloudnetiq/planport/app/models"
	"gorm.io/gorm"
)

// auditLogRepository implements the AuditLogRepository interface
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new audit log repository instance
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Record persists one audit entry
func (r *auditLogRepository) Record(entry models.AuditEntry) error {
	row := entry.ToLog()
	return r.db.Create(&row).Error
}

// GetByUserID retrieves a user's audit trail, newest first
func (r *auditLogRepository) GetByUserID(userID uint, offset, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&logs).Error
	return logs, err
}
