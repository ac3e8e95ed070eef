package models

import (
	"time"

	"gorm.io/gorm"
)

// Discount is a promotional price reduction. PlanID is nil for portal-wide
// promotions.
type Discount struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	PlanID      *uint          `gorm:"index" json:"plan_id,omitempty"`
	Plan        *Plan          `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Name        string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Description string         `gorm:"type:text" json:"description"`
	PercentOff  float64        `gorm:"not null" json:"percent_off" validate:"gt=0,lte=100"`
	ValidFrom   time.Time      `gorm:"not null" json:"valid_from"`
	ValidUntil  time.Time      `gorm:"not null" json:"valid_until"`
	IsActive    bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsCurrent reports whether the discount applies at the given time.
func (d *Discount) IsCurrent(now time.Time) bool {
	return d.IsActive && !now.Before(d.ValidFrom) && now.Before(d.ValidUntil)
}

// DiscountedPrice applies the discount to a monthly price.
func (d *Discount) DiscountedPrice(price float64) float64 {
	return price * (1 - d.PercentOff/100)
}
