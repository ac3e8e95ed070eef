package repository

import (
	"time"

	"github.com/cloudnetiq/planport/app/models"
	"gorm.io/gorm"
)

// usageRepository implements the UsageRepository interface
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository instance
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

// Create stores one usage sample
func (r *usageRepository) Create(record *models.UsageRecord) error {
	return r.db.Create(record).Error
}

// GetBySubscriptionID retrieves usage samples for a subscription inside a window
func (r *usageRepository) GetBySubscriptionID(subscriptionID uint, from, until time.Time) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	err := r.db.Where("subscription_id = ? AND recorded_at >= ? AND recorded_at < ?",
		subscriptionID, from, until).
		Order("recorded_at ASC").
		Find(&records).Error
	return records, err
}

// SumBySubscriptionID sums the data used by a subscription inside a window
func (r *usageRepository) SumBySubscriptionID(subscriptionID uint, from, until time.Time) (float64, error) {
	var total float64
	err := r.db.Model(&models.UsageRecord{}).
		Where("subscription_id = ? AND recorded_at >= ? AND recorded_at < ?",
			subscriptionID, from, until).
		Select("COALESCE(SUM(used_gb), 0)").
		Scan(&total).Error
	return total, err
}

// AverageCycleUsage estimates the user's average data use per billing cycle
// over their most recent samples. Used by plan recommendations.
func (r *usageRepository) AverageCycleUsage(userID uint, cycles int) (float64, error) {
	if cycles <= 0 {
		cycles = 3
	}
	now := time.Now()
	since := now.Add(-time.Duration(cycles) * models.BillingCycle)

	var row struct {
		Total    float64
		Earliest *time.Time
	}
	err := r.db.Model(&models.UsageRecord{}).
		Where("user_id = ? AND recorded_at >= ?", userID, since).
		Select("COALESCE(SUM(used_gb), 0) AS total, MIN(recorded_at) AS earliest").
		Scan(&row).Error
	if err != nil {
		return 0, err
	}
	if row.Earliest == nil {
		return 0, nil
	}

	// A subscriber younger than the window would otherwise look like a light
	// user: divide by the cycles their samples actually span.
	covered := coveredCycles(now.Sub(*row.Earliest), cycles)
	return row.Total / float64(covered), nil
}

func coveredCycles(span time.Duration, max int) int {
	covered := int(span/models.BillingCycle) + 1
	if covered < 1 {
		covered = 1
	}
	if covered > max {
		covered = max
	}
	return covered
}
