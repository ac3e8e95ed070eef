package repository

import (
	"time"

	"github.com/cloudnetiq/planport/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// CreateActive inserts a new active subscription row. The UNIQUE(user_id,
// active) index makes a second active row for the same user fail with
// gorm.ErrDuplicatedKey, which the ledger maps to a conflict.
func (r *subscriptionRepository) CreateActive(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// GetByID retrieves a subscription with its plan preloaded
func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Plan").First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetActiveByUserID retrieves the user's single active subscription
func (r *subscriptionRepository) GetActiveByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Plan").
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetLatestByUserID retrieves the user's most recent subscription row
// regardless of status.
func (r *subscriptionRepository) GetLatestByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByUserID retrieves the user's full subscription history, newest first
func (r *subscriptionRepository) GetByUserID(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// Update persists changes to an existing subscription row
func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// ExpireDue transitions every subscription whose paid window has ended to
// expired and clears the active flag. Returns the number of affected rows.
func (r *subscriptionRepository) ExpireDue(now time.Time) (int64, error) {
	result := r.db.Model(&models.Subscription{}).
		Where("end_date IS NOT NULL AND end_date <= ? AND status <> ?", now, models.SubscriptionStatusExpired).
		Updates(map[string]any{
			"status": models.SubscriptionStatusExpired,
			"active": nil,
		})
	return result.RowsAffected, result.Error
}

// GetEndingBetween retrieves not-yet-expired subscriptions whose paid window
// ends inside the given range (used for expiry notices).
func (r *subscriptionRepository) GetEndingBetween(from, until time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Preload("Plan").
		Where("end_date IS NOT NULL AND end_date > ? AND end_date <= ? AND status <> ?",
			from, until, models.SubscriptionStatusExpired).
		Find(&subs).Error
	return subs, err
}

// GetAllActive retrieves every active subscription with its plan preloaded
// (used by the billing reminder sweep).
func (r *subscriptionRepository) GetAllActive() ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Preload("Plan").
		Where("status = ?", models.SubscriptionStatusActive).
		Find(&subs).Error
	return subs, err
}

// CountByStatus returns the number of subscriptions in the given status
func (r *subscriptionRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// SumActivePrice returns the monthly recurring revenue over active rows
func (r *subscriptionRepository) SumActivePrice() (float64, error) {
	var total float64
	err := r.db.Model(&models.Subscription{}).
		Where("status = ?", models.SubscriptionStatusActive).
		Select("COALESCE(SUM(price_paid), 0)").
		Scan(&total).Error
	return total, err
}

// GetPlanStats aggregates subscriber counts and revenue per plan
func (r *subscriptionRepository) GetPlanStats() ([]PlanStats, error) {
	var stats []PlanStats
	err := r.db.Raw(`
		SELECT p.id AS plan_id,
		       p.name AS plan_name,
		       COALESCE(SUM(CASE WHEN s.status = 'active' THEN 1 ELSE 0 END), 0) AS active_count,
		       COALESCE(SUM(CASE WHEN s.status = 'active' THEN s.price_paid ELSE 0 END), 0) AS monthly_revenue,
		       COALESCE(SUM(CASE WHEN s.status = 'cancelled' THEN 1 ELSE 0 END), 0) AS cancelled_count,
		       COALESCE(SUM(s.price_paid), 0) AS lifetime_revenue
		FROM plans p
		LEFT JOIN subscriptions s ON s.plan_id = p.id
		WHERE p.deleted_at IS NULL
		GROUP BY p.id, p.name
		ORDER BY monthly_revenue DESC, p.id ASC
	`).Scan(&stats).Error
	return stats, err
}
