package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/middleware"
	"github.com/cloudnetiq/planport/internal/pkg/statistics"
	"github.com/cloudnetiq/planport/internal/pkg/usercontext"
)

func newAdminApp(t *testing.T, isAdmin bool) (*fiber.App, *repository.Repositories) {
	t.Helper()

	repos := repository.NewMemoryRepositories()
	repository.SetGlobalRepositoriesForTesting(repos)
	ResetLedgerForTesting()
	statistics.ResetCacheUpdateTimer()

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(usercontext.KeyUserContext, usercontext.UserContext{
			UserID:     1,
			Username:   "admin",
			IsLoggedIn: true,
			IsAdmin:    isAdmin,
		})
		return c.Next()
	})

	admin := app.Group("/admin", middleware.RequireAdmin)
	admin.Get("/", HandleAdminDashboard)
	admin.Get("/analytics", HandleAdminAnalytics)
	admin.Get("/users", HandleAdminListUsers)
	admin.Get("/plans", HandleAdminListPlans)
	admin.Post("/plans", HandleAdminCreatePlan)
	admin.Put("/plans/:id", HandleAdminUpdatePlan)
	admin.Post("/plans/:id/disable", HandleAdminDisablePlan)
	admin.Post("/discounts", HandleAdminCreateDiscount)

	return app, repos
}

func TestAdminRoutesRejectNonAdmins(t *testing.T) {
	app, _ := newAdminApp(t, false)

	resp, body := doJSON(t, app, http.MethodGet, "/admin/", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestAdminCreatePlan(t *testing.T) {
	app, repos := newAdminApp(t, true)

	resp, body := doJSON(t, app, http.MethodPost, "/admin/plans", fiber.Map{
		"name":             "Business",
		"description":      "For small teams",
		"monthly_price":    49.99,
		"monthly_quota_gb": 1000,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	plan := body["plan"].(map[string]any)
	assert.Equal(t, "Business", plan["name"])
	assert.Equal(t, true, plan["is_active"])

	// The new plan is purchasable right away.
	active, err := repos.Plan.GetActive()
	require.NoError(t, err)
	require.Len(t, active, 1)

	// Creating the plan leaves an audit trail.
	logs, err := repos.AuditLog.GetByUserID(1, 0, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, models.AuditActionPlanCreated, logs[0].Action)
}

func TestAdminCreatePlanDuplicateName(t *testing.T) {
	app, repos := newAdminApp(t, true)
	seedCatalogPlan(t, repos, "Business", 49.99)

	resp, body := doJSON(t, app, http.MethodPost, "/admin/plans", fiber.Map{
		"name":             "Business",
		"monthly_price":    59.99,
		"monthly_quota_gb": 2000,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestAdminCreatePlanValidation(t *testing.T) {
	app, _ := newAdminApp(t, true)

	// Quota must be positive.
	resp, _ := doJSON(t, app, http.MethodPost, "/admin/plans", fiber.Map{
		"name":             "Broken",
		"monthly_price":    9.99,
		"monthly_quota_gb": 0,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminDisablePlan(t *testing.T) {
	app, repos := newAdminApp(t, true)
	plan := seedCatalogPlan(t, repos, "Legacy", 4.99)

	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/admin/plans/%d/disable", plan.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	active, err := repos.Plan.GetActive()
	require.NoError(t, err)
	assert.Empty(t, active)

	// Retired plans stay visible to admins.
	resp, body := doJSON(t, app, http.MethodGet, "/admin/plans", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["plans"], 1)

	resp, _ = doJSON(t, app, http.MethodPost, "/admin/plans/999/disable", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminUpdatePlanKeepsLedgerPrices(t *testing.T) {
	app, repos := newAdminApp(t, true)
	plan := seedCatalogPlan(t, repos, "Basic", 9.99)

	sub := models.NewActiveSubscription(7, plan, time.Now())
	sub.PricePaid = plan.MonthlyPrice
	require.NoError(t, repos.Subscription.CreateActive(sub))

	resp, _ := doJSON(t, app, http.MethodPut, fmt.Sprintf("/admin/plans/%d", plan.ID), fiber.Map{
		"name":             "Basic",
		"monthly_price":    12.99,
		"monthly_quota_gb": 100,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Existing subscriptions keep the price they were sold at.
	existing, err := repos.Subscription.GetActiveByUserID(7)
	require.NoError(t, err)
	assert.Equal(t, 9.99, existing.PricePaid)
}

func TestAdminCreateDiscountValidation(t *testing.T) {
	app, repos := newAdminApp(t, true)
	plan := seedCatalogPlan(t, repos, "Basic", 9.99)

	// valid_until in the past is rejected.
	resp, _ := doJSON(t, app, http.MethodPost, "/admin/discounts", fiber.Map{
		"name":        "Expired before it began",
		"percent_off": 10,
		"valid_until": time.Now().Add(-time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A plan-bound discount needs an existing plan.
	resp, _ = doJSON(t, app, http.MethodPost, "/admin/discounts", fiber.Map{
		"name":        "Ghost plan promo",
		"plan_id":     999,
		"percent_off": 10,
		"valid_until": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/admin/discounts", fiber.Map{
		"name":        "Spring sale",
		"plan_id":     plan.ID,
		"percent_off": 25,
		"valid_until": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	current, err := repos.Discount.GetCurrent(time.Now())
	require.NoError(t, err)
	assert.Len(t, current, 1)
}

func TestAdminDashboard(t *testing.T) {
	app, repos := newAdminApp(t, true)
	plan := seedCatalogPlan(t, repos, "Basic", 9.99)

	require.NoError(t, repos.User.Create(&models.User{Name: "A", Email: "a@example.com", Password: "x"}))
	require.NoError(t, repos.User.Create(&models.User{Name: "B", Email: "b@example.com", Password: "x"}))

	sub := models.NewActiveSubscription(2, plan, time.Now())
	sub.PricePaid = plan.MonthlyPrice
	require.NoError(t, repos.Subscription.CreateActive(sub))

	resp, body := doJSON(t, app, http.MethodGet, "/admin/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	dashboard := body["dashboard"].(map[string]any)
	assert.Equal(t, float64(2), dashboard["total_users"])
	assert.Equal(t, float64(1), dashboard["active_subscriptions"])
	assert.Equal(t, 9.99, dashboard["monthly_revenue"])
}

func TestAdminAnalytics(t *testing.T) {
	app, repos := newAdminApp(t, true)
	plan := seedCatalogPlan(t, repos, "Basic", 9.99)

	require.NoError(t, repos.User.Create(&models.User{Name: "A", Email: "a@example.com", Password: "x"}))
	sub := models.NewActiveSubscription(1, plan, time.Now())
	sub.PricePaid = plan.MonthlyPrice
	require.NoError(t, repos.Subscription.CreateActive(sub))

	resp, body := doJSON(t, app, http.MethodGet, "/admin/analytics?days=7", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(7), body["days"])

	breakdown := body["plan_breakdown"].([]any)
	require.Len(t, breakdown, 1)
	assert.Equal(t, "Basic", breakdown[0].(map[string]any)["plan_name"])
	assert.Equal(t, float64(1), breakdown[0].(map[string]any)["active_count"])

	// A garbage window falls back to the default.
	resp, body = doJSON(t, app, http.MethodGet, "/admin/analytics?days=9999", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(30), body["days"])
}

func TestAdminListUsersPagination(t *testing.T) {
	app, repos := newAdminApp(t, true)
	for i := 0; i < 3; i++ {
		require.NoError(t, repos.User.Create(&models.User{
			Name:     fmt.Sprintf("User %d", i),
			Email:    fmt.Sprintf("user%d@example.com", i),
			Password: "x",
		}))
	}

	resp, body := doJSON(t, app, http.MethodGet, "/admin/users?page=1&per_page=2", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["users"], 2)
	assert.Equal(t, float64(3), body["total"])

	resp, body = doJSON(t, app, http.MethodGet, "/admin/users?page=2&per_page=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["users"], 1)
}
