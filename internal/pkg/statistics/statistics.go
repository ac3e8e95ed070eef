// Package statistics aggregates the portal numbers the admin dashboard
// shows. Aggregates are cached in Redis and refreshed at most every five
// minutes, so dashboard reloads never hammer the database.
package statistics

import (
	"log"
	"sync"
	"time"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/cache"
)

const (
	CacheKeyDashboard = "statistics:dashboard"
	CacheExpiration   = 30 * time.Minute
)

// DashboardData holds the headline numbers for the admin dashboard.
type DashboardData struct {
	TotalUsers             int64   `json:"total_users"`
	SignupsToday           int64   `json:"signups_today"`
	ActiveSubscriptions    int64   `json:"active_subscriptions"`
	CancelledSubscriptions int64   `json:"cancelled_subscriptions"`
	ExpiredSubscriptions   int64   `json:"expired_subscriptions"`
	MonthlyRevenue         float64 `json:"monthly_revenue"`
	TotalPlans             int64   `json:"total_plans"`
	GeneratedAt            string  `json:"generated_at"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// UpdateCacheIfNeeded refreshes the cached dashboard when the last refresh is
// older than the update interval.
func UpdateCacheIfNeeded() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	if time.Since(lastCacheUpdate) <= cacheUpdateInterval {
		return
	}
	if _, err := UpdateStatisticsCache(); err != nil {
		log.Printf("statistics cache refresh failed: %v", err)
		return
	}
	lastCacheUpdate = time.Now()
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded to refresh.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all dashboard aggregates and stores them
// in the cache.
func UpdateStatisticsCache() (*DashboardData, error) {
	repos := repository.GetGlobalRepositories()

	totalUsers, err := repos.User.Count()
	if err != nil {
		return nil, err
	}

	todayStart := time.Now().Truncate(24 * time.Hour)
	signupsToday, err := repos.User.CountSince(todayStart)
	if err != nil {
		return nil, err
	}

	active, err := repos.Subscription.CountByStatus(models.SubscriptionStatusActive)
	if err != nil {
		return nil, err
	}
	cancelled, err := repos.Subscription.CountByStatus(models.SubscriptionStatusCancelled)
	if err != nil {
		return nil, err
	}
	expired, err := repos.Subscription.CountByStatus(models.SubscriptionStatusExpired)
	if err != nil {
		return nil, err
	}

	revenue, err := repos.Subscription.SumActivePrice()
	if err != nil {
		return nil, err
	}

	totalPlans, err := repos.Plan.Count()
	if err != nil {
		return nil, err
	}

	data := &DashboardData{
		TotalUsers:             totalUsers,
		SignupsToday:           signupsToday,
		ActiveSubscriptions:    active,
		CancelledSubscriptions: cancelled,
		ExpiredSubscriptions:   expired,
		MonthlyRevenue:         revenue,
		TotalPlans:             totalPlans,
		GeneratedAt:            time.Now().UTC().Format(time.RFC3339),
	}

	if err := cache.SetJSON(CacheKeyDashboard, data, CacheExpiration); err != nil {
		log.Printf("failed to cache dashboard statistics: %v", err)
	}

	return data, nil
}

// GetDashboardData returns the dashboard aggregates, serving from cache when
// fresh enough and recomputing otherwise.
func GetDashboardData() (*DashboardData, error) {
	UpdateCacheIfNeeded()

	var data DashboardData
	if err := cache.GetJSON(CacheKeyDashboard, &data); err == nil {
		return &data, nil
	}

	return UpdateStatisticsCache()
}
