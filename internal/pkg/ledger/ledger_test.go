package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
)

func newTestLedger(t *testing.T) (*Ledger, *repository.Repositories) {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	return New(repos.Plan, repos.Subscription, repos.Discount), repos
}

func seedPlan(t *testing.T, repos *repository.Repositories, name string, price float64, active bool) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		Name:           name,
		MonthlyPrice:   price,
		MonthlyQuotaGB: 100,
		IsActive:       active,
	}
	require.NoError(t, repos.Plan.Create(plan))
	return plan
}

func TestLedgerPurchase(t *testing.T) {
	ledger, repos := newTestLedger(t)
	plan := seedPlan(t, repos, "Basic", 9.99, true)

	sub, err := ledger.Purchase(1, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, plan.ID, sub.PlanID)
	assert.Equal(t, 9.99, sub.PricePaid)
	assert.Nil(t, sub.EndDate)
	assert.Equal(t, plan.Name, sub.Plan.Name)
}

func TestLedgerPurchaseSnapshotsPrice(t *testing.T) {
	ledger, repos := newTestLedger(t)
	plan := seedPlan(t, repos, "Basic", 9.99, true)

	sub, err := ledger.Purchase(1, plan.ID)
	require.NoError(t, err)

	// A later catalog price change must not touch existing ledger rows.
	plan.MonthlyPrice = 19.99
	require.NoError(t, repos.Plan.Update(plan))

	got, err := ledger.Active(1)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, 9.99, got.PricePaid)
}

func TestLedgerPurchaseAppliesRunningDiscount(t *testing.T) {
	ledger, repos := newTestLedger(t)
	plan := seedPlan(t, repos, "Basic", 10.00, true)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }
	require.NoError(t, repos.Discount.Create(&models.Discount{
		Name:       "Spring promo",
		PercentOff: 25,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
		IsActive:   true,
	}))

	sub, err := ledger.Purchase(1, plan.ID)
	require.NoError(t, err)
	assert.InDelta(t, 7.50, sub.PricePaid, 0.001)
}

func TestLedgerPurchaseIgnoresForeignPlanDiscount(t *testing.T) {
	ledger, repos := newTestLedger(t)
	basic := seedPlan(t, repos, "Basic", 10.00, true)
	pro := seedPlan(t, repos, "Pro", 30.00, true)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }
	require.NoError(t, repos.Discount.Create(&models.Discount{
		Name:       "Pro only",
		PlanID:     &pro.ID,
		PercentOff: 50,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
		IsActive:   true,
	}))

	sub, err := ledger.Purchase(1, basic.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.00, sub.PricePaid)
}

func TestLedgerPurchaseUnknownPlan(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Purchase(1, 999)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestLedgerPurchaseRetiredPlan(t *testing.T) {
	ledger, repos := newTestLedger(t)
	plan := seedPlan(t, repos, "Legacy", 4.99, false)

	_, err := ledger.Purchase(1, plan.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestLedgerDoublePurchase(t *testing.T) {
	ledger, repos := newTestLedger(t)
	basic := seedPlan(t, repos, "Basic", 9.99, true)
	pro := seedPlan(t, repos, "Pro", 29.99, true)

	_, err := ledger.Purchase(1, basic.ID)
	require.NoError(t, err)

	_, err = ledger.Purchase(1, pro.ID)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	// The first subscription is untouched by the rejected purchase.
	got, err := ledger.Active(1)
	require.NoError(t, err)
	assert.Equal(t, basic.ID, got.PlanID)
}

func TestLedgerPurchaseUniqueIndexRace(t *testing.T) {
	ledger, repos := newTestLedger(t)
	plan := seedPlan(t, repos, "Basic", 9.99, true)

	// Simulate another process winning between the active check and the
	// insert: the row exists as cancelled for the status check but still
	// holds the unique slot.
	active := true
	require.NoError(t, repos.Subscription.CreateActive(&models.Subscription{
		UserID:    1,
		PlanID:    plan.ID,
		Status:    models.SubscriptionStatusCancelled,
		PricePaid: 9.99,
		StartDate: time.Now(),
		Active:    &active,
	}))

	_, err := ledger.Purchase(1, plan.ID)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestLedgerActiveNone(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Active(42)
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestLedgerCancel(t *testing.T) {
	ledger, repos := newTestLedger(t)
	plan := seedPlan(t, repos, "Basic", 9.99, true)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return start }
	_, err := ledger.Purchase(1, plan.ID)
	require.NoError(t, err)

	// Cancel ten days into the first cycle.
	cancelAt := start.Add(10 * 24 * time.Hour)
	ledger.now = func() time.Time { return cancelAt }
	sub, err := ledger.Cancel(1)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	require.NotNil(t, sub.CancelledAt)
	assert.Equal(t, cancelAt, *sub.CancelledAt)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, start.Add(models.BillingCycle), *sub.EndDate)
	assert.True(t, sub.WithinPaidWindow(cancelAt))
}

func TestLedgerCancelSecondCycle(t *testing.T) {
	ledger, repos := newTestLedger(t)
	plan := seedPlan(t, repos, "Basic", 9.99, true)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return start }
	_, err := ledger.Purchase(1, plan.ID)
	require.NoError(t, err)

	// 45 days in, the second cycle is running; access runs to day 60.
	ledger.now = func() time.Time { return start.Add(45 * 24 * time.Hour) }
	sub, err := ledger.Cancel(1)
	require.NoError(t, err)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, start.Add(2*models.BillingCycle), *sub.EndDate)
}

func TestLedgerCancelIdempotent(t *testing.T) {
	ledger, repos := newTestLedger(t)
	plan := seedPlan(t, repos, "Basic", 9.99, true)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return start }
	_, err := ledger.Purchase(1, plan.ID)
	require.NoError(t, err)

	ledger.now = func() time.Time { return start.Add(24 * time.Hour) }
	first, err := ledger.Cancel(1)
	require.NoError(t, err)

	// Retry within the paid window returns the same record, no error.
	ledger.now = func() time.Time { return start.Add(48 * time.Hour) }
	second, err := ledger.Cancel(1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, *first.EndDate, *second.EndDate)

	// After the paid window lapses there is nothing left to cancel.
	ledger.now = func() time.Time { return start.Add(31 * 24 * time.Hour) }
	_, err = ledger.Cancel(1)
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestLedgerCancelWithoutSubscription(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Cancel(7)
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestLedgerRepurchaseAfterExpiry(t *testing.T) {
	ledger, repos := newTestLedger(t)
	plan := seedPlan(t, repos, "Basic", 9.99, true)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return start }
	_, err := ledger.Purchase(1, plan.ID)
	require.NoError(t, err)

	_, err = ledger.Cancel(1)
	require.NoError(t, err)

	// Sweep past the end date, then the unique slot is free again.
	_, err = repos.Subscription.ExpireDue(start.Add(31 * 24 * time.Hour))
	require.NoError(t, err)

	later := start.Add(40 * 24 * time.Hour)
	ledger.now = func() time.Time { return later }
	sub, err := ledger.Purchase(1, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, later, sub.StartDate)
}
