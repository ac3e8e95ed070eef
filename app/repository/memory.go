package repository

import (
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cloudnetiq/planport/app/models"
)

// NewMemoryRepositories returns a Repositories set backed by in-memory maps.
// It mirrors the semantics tests care about: gorm.ErrRecordNotFound for
// missing rows and gorm.ErrDuplicatedKey when a second active subscription
// would violate the UNIQUE(user_id, active) index. Used by tests and local
// tooling; production always runs on the gorm implementations.
func NewMemoryRepositories() *Repositories {
	store := &memoryStore{
		users:   map[uint]*models.User{},
		plans:   map[uint]*models.Plan{},
		subs:    map[uint]*models.Subscription{},
		alerts:  map[uint]*models.Alert{},
		usage:   map[uint]*models.UsageRecord{},
		offers:  map[uint]*models.Discount{},
		nextIDs: map[string]uint{},
	}
	return &Repositories{
		User:         &memoryUserRepository{store},
		Plan:         &memoryPlanRepository{store},
		Subscription: &memorySubscriptionRepository{store},
		Alert:        &memoryAlertRepository{store},
		AuditLog:     &memoryAuditLogRepository{store},
		Discount:     &memoryDiscountRepository{store},
		Usage:        &memoryUsageRepository{store},
	}
}

type memoryStore struct {
	mu      sync.Mutex
	users   map[uint]*models.User
	plans   map[uint]*models.Plan
	subs    map[uint]*models.Subscription
	alerts  map[uint]*models.Alert
	usage   map[uint]*models.UsageRecord
	offers  map[uint]*models.Discount
	audits  []models.AuditLog
	nextIDs map[string]uint
}

func (s *memoryStore) nextID(table string) uint {
	s.nextIDs[table]++
	return s.nextIDs[table]
}

// --- users ---

type memoryUserRepository struct{ store *memoryStore }

func (r *memoryUserRepository) Create(user *models.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.ID == 0 {
		user.ID = s.nextID("users")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (r *memoryUserRepository) GetByID(id uint) (*models.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepository) GetByEmail(email string) (*models.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepository) GetByAPIKeyHash(hash string) (*models.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(hash) == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, u := range s.users {
		if u.APIKeyHash == hash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepository) Update(user *models.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (r *memoryUserRepository) List(offset, limit int) ([]models.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	if offset >= len(users) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(users) {
		end = len(users)
	}
	return users[offset:end], nil
}

func (r *memoryUserRepository) Count() (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (r *memoryUserRepository) CountSince(since time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, u := range s.users {
		if !u.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *memoryUserRepository) GetDailySignups(startDate, endDate time.Time) ([]DailyCount, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	byDay := map[string]int64{}
	for _, u := range s.users {
		if u.CreatedAt.Before(startDate) || u.CreatedAt.After(endDate) {
			continue
		}
		byDay[u.CreatedAt.Format("2006-01-02")]++
	}
	days := make([]DailyCount, 0, len(byDay))
	for day, count := range byDay {
		days = append(days, DailyCount{Date: day, Count: count})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

// --- plans ---

type memoryPlanRepository struct{ store *memoryStore }

func (r *memoryPlanRepository) Create(plan *models.Plan) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan.ID == 0 {
		plan.ID = s.nextID("plans")
	}
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (r *memoryPlanRepository) GetByID(id uint) (*models.Plan, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPlanRepository) GetActive() ([]models.Plan, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	plans := make([]models.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if p.IsActive {
			plans = append(plans, *p)
		}
	}
	sortPlans(plans)
	return plans, nil
}

func (r *memoryPlanRepository) GetAll() ([]models.Plan, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	plans := make([]models.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		plans = append(plans, *p)
	}
	sortPlans(plans)
	return plans, nil
}

func sortPlans(plans []models.Plan) {
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].MonthlyPrice != plans[j].MonthlyPrice {
			return plans[i].MonthlyPrice < plans[j].MonthlyPrice
		}
		return plans[i].ID < plans[j].ID
	})
}

func (r *memoryPlanRepository) Update(plan *models.Plan) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[plan.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (r *memoryPlanRepository) Deactivate(id uint) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.IsActive = false
	return nil
}

func (r *memoryPlanRepository) Count() (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.plans)), nil
}

// --- subscriptions ---

type memorySubscriptionRepository struct{ store *memoryStore }

func (r *memorySubscriptionRepository) CreateActive(sub *models.Subscription) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.Active != nil {
		for _, existing := range s.subs {
			if existing.UserID == sub.UserID && existing.Active != nil {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	if sub.ID == 0 {
		sub.ID = s.nextID("subscriptions")
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (r *memorySubscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	r.attachPlan(&cp)
	return &cp, nil
}

func (r *memorySubscriptionRepository) attachPlan(sub *models.Subscription) {
	if p, ok := r.store.plans[sub.PlanID]; ok {
		sub.Plan = *p
	}
}

func (r *memorySubscriptionRepository) GetActiveByUserID(userID uint) (*models.Subscription, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.Status == models.SubscriptionStatusActive {
			cp := *sub
			r.attachPlan(&cp)
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memorySubscriptionRepository) GetLatestByUserID(userID uint) (*models.Subscription, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Subscription
	for _, sub := range s.subs {
		if sub.UserID != userID {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) ||
			(sub.CreatedAt.Equal(latest.CreatedAt) && sub.ID > latest.ID) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	r.attachPlan(&cp)
	return &cp, nil
}

func (r *memorySubscriptionRepository) GetByUserID(userID uint) ([]models.Subscription, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []models.Subscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			cp := *sub
			r.attachPlan(&cp)
			subs = append(subs, cp)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs, nil
}

func (r *memorySubscriptionRepository) Update(sub *models.Subscription) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *sub
	cp.Plan = models.Plan{}
	s.subs[sub.ID] = &cp
	return nil
}

func (r *memorySubscriptionRepository) ExpireDue(now time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, sub := range s.subs {
		if sub.Status == models.SubscriptionStatusExpired {
			continue
		}
		if sub.EndDate != nil && !sub.EndDate.After(now) {
			sub.MarkExpired()
			affected++
		}
	}
	return affected, nil
}

func (r *memorySubscriptionRepository) GetEndingBetween(from, until time.Time) ([]models.Subscription, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []models.Subscription
	for _, sub := range s.subs {
		if sub.Status == models.SubscriptionStatusExpired || sub.EndDate == nil {
			continue
		}
		if sub.EndDate.After(from) && !sub.EndDate.After(until) {
			cp := *sub
			r.attachPlan(&cp)
			subs = append(subs, cp)
		}
	}
	return subs, nil
}

func (r *memorySubscriptionRepository) GetAllActive() ([]models.Subscription, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []models.Subscription
	for _, sub := range s.subs {
		if sub.Status == models.SubscriptionStatusActive {
			cp := *sub
			r.attachPlan(&cp)
			subs = append(subs, cp)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (r *memorySubscriptionRepository) CountByStatus(status string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, sub := range s.subs {
		if sub.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *memorySubscriptionRepository) SumActivePrice() (float64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, sub := range s.subs {
		if sub.Status == models.SubscriptionStatusActive {
			total += sub.PricePaid
		}
	}
	return total, nil
}

func (r *memorySubscriptionRepository) GetPlanStats() ([]PlanStats, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	byPlan := map[uint]*PlanStats{}
	for _, p := range s.plans {
		byPlan[p.ID] = &PlanStats{PlanID: p.ID, PlanName: p.Name}
	}
	for _, sub := range s.subs {
		stats, ok := byPlan[sub.PlanID]
		if !ok {
			continue
		}
		stats.LifetimeRevenue += sub.PricePaid
		switch sub.Status {
		case models.SubscriptionStatusActive:
			stats.ActiveCount++
			stats.MonthlyRevenue += sub.PricePaid
		case models.SubscriptionStatusCancelled:
			stats.CancelledCount++
		}
	}
	result := make([]PlanStats, 0, len(byPlan))
	for _, stats := range byPlan {
		result = append(result, *stats)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].MonthlyRevenue != result[j].MonthlyRevenue {
			return result[i].MonthlyRevenue > result[j].MonthlyRevenue
		}
		return result[i].PlanID < result[j].PlanID
	})
	return result, nil
}

// --- alerts ---

type memoryAlertRepository struct{ store *memoryStore }

func (r *memoryAlertRepository) Create(alert *models.Alert) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert.ID == 0 {
		alert.ID = s.nextID("alerts")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (r *memoryAlertRepository) GetByID(id uint) (*models.Alert, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memoryAlertRepository) GetByUserID(userID uint) ([]models.Alert, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var alerts []models.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			alerts = append(alerts, *a)
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID > alerts[j].ID
	})
	return alerts, nil
}

func (r *memoryAlertRepository) CountUnreadByUserID(userID uint) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, a := range s.alerts {
		if a.UserID == userID && !a.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *memoryAlertRepository) MarkRead(alert *models.Alert) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.alerts[alert.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.IsRead = true
	alert.IsRead = true
	return nil
}

func (r *memoryAlertRepository) ExistsSince(userID uint, alertType string, since time.Time) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.UserID == userID && a.Type == alertType && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// --- audit logs ---

type memoryAuditLogRepository struct{ store *memoryStore }

func (r *memoryAuditLogRepository) Record(entry models.AuditEntry) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	row := entry.ToLog()
	row.ID = s.nextID("audit_logs")
	row.CreatedAt = time.Now()
	s.audits = append(s.audits, row)
	return nil
}

func (r *memoryAuditLogRepository) GetByUserID(userID uint, offset, limit int) ([]models.AuditLog, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var logs []models.AuditLog
	for i := len(s.audits) - 1; i >= 0; i-- {
		if s.audits[i].UserID == userID {
			logs = append(logs, s.audits[i])
		}
	}
	if offset >= len(logs) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(logs) {
		end = len(logs)
	}
	return logs[offset:end], nil
}

// --- discounts ---

type memoryDiscountRepository struct{ store *memoryStore }

func (r *memoryDiscountRepository) Create(discount *models.Discount) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if discount.ID == 0 {
		discount.ID = s.nextID("discounts")
	}
	cp := *discount
	s.offers[discount.ID] = &cp
	return nil
}

func (r *memoryDiscountRepository) GetByID(id uint) (*models.Discount, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.offers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memoryDiscountRepository) GetCurrent(now time.Time) ([]models.Discount, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var discounts []models.Discount
	for _, d := range s.offers {
		if d.IsCurrent(now) {
			discounts = append(discounts, *d)
		}
	}
	sort.Slice(discounts, func(i, j int) bool { return discounts[i].PercentOff > discounts[j].PercentOff })
	return discounts, nil
}

func (r *memoryDiscountRepository) GetAll() ([]models.Discount, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var discounts []models.Discount
	for _, d := range s.offers {
		discounts = append(discounts, *d)
	}
	sort.Slice(discounts, func(i, j int) bool { return discounts[i].ValidUntil.After(discounts[j].ValidUntil) })
	return discounts, nil
}

func (r *memoryDiscountRepository) Update(discount *models.Discount) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[discount.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *discount
	s.offers[discount.ID] = &cp
	return nil
}

func (r *memoryDiscountRepository) Deactivate(id uint) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.offers[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.IsActive = false
	return nil
}

// --- usage ---

type memoryUsageRepository struct{ store *memoryStore }

func (r *memoryUsageRepository) Create(record *models.UsageRecord) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == 0 {
		record.ID = s.nextID("usage_records")
	}
	cp := *record
	s.usage[record.ID] = &cp
	return nil
}

func (r *memoryUsageRepository) GetBySubscriptionID(subscriptionID uint, from, until time.Time) ([]models.UsageRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []models.UsageRecord
	for _, rec := range s.usage {
		if rec.SubscriptionID == subscriptionID && !rec.RecordedAt.Before(from) && rec.RecordedAt.Before(until) {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RecordedAt.Before(records[j].RecordedAt) })
	return records, nil
}

func (r *memoryUsageRepository) SumBySubscriptionID(subscriptionID uint, from, until time.Time) (float64, error) {
	records, err := r.GetBySubscriptionID(subscriptionID, from, until)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, rec := range records {
		total += rec.UsedGB
	}
	return total, nil
}

func (r *memoryUsageRepository) AverageCycleUsage(userID uint, cycles int) (float64, error) {
	if cycles <= 0 {
		cycles = 3
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	since := now.Add(-time.Duration(cycles) * models.BillingCycle)
	var total float64
	var earliest *time.Time
	for _, rec := range s.usage {
		if rec.UserID != userID || rec.RecordedAt.Before(since) {
			continue
		}
		total += rec.UsedGB
		if earliest == nil || rec.RecordedAt.Before(*earliest) {
			t := rec.RecordedAt
			earliest = &t
		}
	}
	if earliest == nil {
		return 0, nil
	}
	covered := coveredCycles(now.Sub(*earliest), cycles)
	return total / float64(covered), nil
}
