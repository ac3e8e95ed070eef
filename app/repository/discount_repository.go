package repository

import (
	"time"

	"github.com/cloudnetiq/planport/app/models"
	"gorm.io/gorm"
)

// discountRepository implements the DiscountRepository interface
type discountRepository struct {
	db *gorm.DB
}

// NewDiscountRepository creates a new discount repository instance
func NewDiscountRepository(db *gorm.DB) DiscountRepository {
	return &discountRepository{db: db}
}

// Create stores a new discount
func (r *discountRepository) Create(discount *models.Discount) error {
	return r.db.Create(discount).Error
}

// GetByID retrieves a discount by its ID
func (r *discountRepository) GetByID(id uint) (*models.Discount, error) {
	var discount models.Discount
	err := r.db.Preload("Plan").First(&discount, id).Error
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

// GetCurrent retrieves discounts valid at the given time
func (r *discountRepository) GetCurrent(now time.Time) ([]models.Discount, error) {
	var discounts []models.Discount
	err := r.db.Preload("Plan").
		Where("is_active = ? AND valid_from <= ? AND valid_until > ?", true, now, now).
		Order("percent_off DESC").
		Find(&discounts).Error
	return discounts, err
}

// GetAll retrieves every discount (admin view)
func (r *discountRepository) GetAll() ([]models.Discount, error) {
	var discounts []models.Discount
	err := r.db.Preload("Plan").Order("valid_until DESC").Find(&discounts).Error
	return discounts, err
}

// Update persists changes to an existing discount
func (r *discountRepository) Update(discount *models.Discount) error {
	return r.db.Save(discount).Error
}

// Deactivate disables a discount without deleting it
func (r *discountRepository) Deactivate(id uint) error {
	return r.db.Model(&models.Discount{}).Where("id = ?", id).Update("is_active", false).Error
}
