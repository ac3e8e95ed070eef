package repository

import (
	"time"

	"github.com/cloudnetiq/planport/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	CountSince(since time.Time) (int64, error)
	GetDailySignups(startDate, endDate time.Time) ([]DailyCount, error)
}

// PlanRepository defines the interface for plan catalog operations
type PlanRepository interface {
	Create(plan *models.Plan) error
	GetByID(id uint) (*models.Plan, error)
	GetActive() ([]models.Plan, error)
	GetAll() ([]models.Plan, error)
	Update(plan *models.Plan) error
	Deactivate(id uint) error
	Count() (int64, error)
}

// SubscriptionRepository defines the interface for subscription ledger rows
type SubscriptionRepository interface {
	CreateActive(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetActiveByUserID(userID uint) (*models.Subscription, error)
	GetLatestByUserID(userID uint) (*models.Subscription, error)
	GetByUserID(userID uint) ([]models.Subscription, error)
	Update(sub *models.Subscription) error
	ExpireDue(now time.Time) (int64, error)
	GetEndingBetween(from, until time.Time) ([]models.Subscription, error)
	GetAllActive() ([]models.Subscription, error)
	CountByStatus(status string) (int64, error)
	SumActivePrice() (float64, error)
	GetPlanStats() ([]PlanStats, error)
}

// AlertRepository defines the interface for alert records
type AlertRepository interface {
	Create(alert *models.Alert) error
	GetByID(id uint) (*models.Alert, error)
	GetByUserID(userID uint) ([]models.Alert, error)
	CountUnreadByUserID(userID uint) (int64, error)
	MarkRead(alert *models.Alert) error
	ExistsSince(userID uint, alertType string, since time.Time) (bool, error)
}

// AuditLogRepository defines the interface for audit trail writes
type AuditLogRepository interface {
	Record(entry models.AuditEntry) error
	GetByUserID(userID uint, offset, limit int) ([]models.AuditLog, error)
}

// DiscountRepository defines the interface for promotional discounts
type DiscountRepository interface {
	Create(discount *models.Discount) error
	GetByID(id uint) (*models.Discount, error)
	GetCurrent(now time.Time) ([]models.Discount, error)
	GetAll() ([]models.Discount, error)
	Update(discount *models.Discount) error
	Deactivate(id uint) error
}

// UsageRepository defines the interface for metered usage samples
type UsageRepository interface {
	Create(record *models.UsageRecord) error
	GetBySubscriptionID(subscriptionID uint, from, until time.Time) ([]models.UsageRecord, error)
	SumBySubscriptionID(subscriptionID uint, from, until time.Time) (float64, error)
	AverageCycleUsage(userID uint, cycles int) (float64, error)
}

// DailyCount is one day's worth of a counted metric.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// PlanStats aggregates subscriber numbers and revenue per plan.
type PlanStats struct {
	PlanID          uint    `json:"plan_id"`
	PlanName        string  `json:"plan_name"`
	ActiveCount     int64   `json:"active_count"`
	MonthlyRevenue  float64 `json:"monthly_revenue"`
	CancelledCount  int64   `json:"cancelled_count"`
	LifetimeRevenue float64 `json:"lifetime_revenue"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Plan         PlanRepository
	Subscription SubscriptionRepository
	Alert        AlertRepository
	AuditLog     AuditLogRepository
	Discount     DiscountRepository
	Usage        UsageRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Plan:         NewPlanRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Alert:        NewAlertRepository(db),
		AuditLog:     NewAuditLogRepository(db),
		Discount:     NewDiscountRepository(db),
		Usage:        NewUsageRepository(db),
	}
}
