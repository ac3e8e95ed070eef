package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Plan is a purchasable data plan tier. Published plans stay immutable in
// spirit: price edits never rewrite subscriptions, which keep their own
// price snapshot.
type Plan struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"uniqueIndex;type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Description    string         `gorm:"type:text" json:"description" validate:"max=2000"`
	MonthlyPrice   float64        `gorm:"not null" json:"monthly_price" validate:"gte=0"`
	MonthlyQuotaGB int            `gorm:"not null" json:"monthly_quota_gb" validate:"gte=0"`
	IsActive       bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Plan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}
