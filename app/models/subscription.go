package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// BillingCycle is the fixed length of one billing period. Cancellations keep
// access until the end of the cycle that is running at cancel time.
const BillingCycle = 30 * 24 * time.Hour

// Subscription binds a user to a plan over a time window. Rows are never
// hard-deleted; they remain as billing history. The nullable Active column
// is 1 for the single active row per user and NULL otherwise, so the
// UNIQUE(user_id, active) index rejects a second concurrent purchase even
// when both requests pass the application-level check.
type Subscription struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index:ux_subscriptions_user_active,unique,priority:1" json:"user_id"`
	PlanID      uint       `gorm:"not null;index" json:"plan_id"`
	Status      string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	PricePaid   float64    `gorm:"not null" json:"price_paid"`
	StartDate   time.Time  `gorm:"not null" json:"start_date"`
	EndDate     *time.Time `gorm:"type:timestamp;default:null;index" json:"end_date"`
	CancelledAt *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	Active      *bool      `gorm:"index:ux_subscriptions_user_active,unique,priority:2" json:"-"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Plan Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// NewActiveSubscription builds the row a purchase creates: active, open-ended,
// with the plan price snapshotted at purchase time.
func NewActiveSubscription(userID uint, plan *Plan, now time.Time) *Subscription {
	active := true
	return &Subscription{
		UserID:    userID,
		PlanID:    plan.ID,
		Status:    SubscriptionStatusActive,
		PricePaid: plan.MonthlyPrice,
		StartDate: now,
		Active:    &active,
	}
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

func (s *Subscription) IsCancelled() bool {
	return s.Status == SubscriptionStatusCancelled
}

func (s *Subscription) IsExpired() bool {
	return s.Status == SubscriptionStatusExpired
}

// WithinPaidWindow reports whether the subscription still grants access at
// the given time: active rows always do, cancelled rows do until EndDate.
func (s *Subscription) WithinPaidWindow(now time.Time) bool {
	if s.IsActive() {
		return s.EndDate == nil || now.Before(*s.EndDate)
	}
	if s.IsCancelled() && s.EndDate != nil {
		return now.Before(*s.EndDate)
	}
	return false
}

// CurrentPeriodEnd returns the end of the billing cycle running at the given
// time. Cycles are counted in fixed 30-day windows from StartDate; a time
// exactly on a boundary starts the next cycle.
func (s *Subscription) CurrentPeriodEnd(now time.Time) time.Time {
	elapsed := now.Sub(s.StartDate)
	if elapsed < 0 {
		elapsed = 0
	}
	cycles := int64(elapsed/BillingCycle) + 1
	return s.StartDate.Add(time.Duration(cycles) * BillingCycle)
}

// MarkCancelled transitions an active subscription to cancelled. Access is
// not revoked immediately; EndDate is set to the end of the running cycle.
func (s *Subscription) MarkCancelled(now time.Time) {
	end := s.CurrentPeriodEnd(now)
	s.Status = SubscriptionStatusCancelled
	s.CancelledAt = &now
	s.EndDate = &end
	s.Active = nil
}

// MarkExpired transitions a subscription whose EndDate has been reached.
func (s *Subscription) MarkExpired() {
	s.Status = SubscriptionStatusExpired
	s.Active = nil
}

// CreateSubscription persists a new subscription row.
func CreateSubscription(db *gorm.DB, sub *Subscription) error {
	return db.Create(sub).Error
}
