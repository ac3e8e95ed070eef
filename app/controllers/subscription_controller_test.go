package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/middleware"
	"github.com/cloudnetiq/planport/internal/pkg/usercontext"
)

// newPortalApp builds a fiber app with the user routes mounted behind a stub
// authentication middleware impersonating the given user.
func newPortalApp(t *testing.T, userID uint, isAdmin bool) (*fiber.App, *repository.Repositories) {
	t.Helper()

	repos := repository.NewMemoryRepositories()
	repository.SetGlobalRepositoriesForTesting(repos)
	ResetLedgerForTesting()

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		userCtx := usercontext.UserContext{
			UserID:     userID,
			Username:   fmt.Sprintf("user-%d", userID),
			IsLoggedIn: userID != 0,
			IsAdmin:    isAdmin,
		}
		c.Locals(usercontext.KeyUserContext, userCtx)
		c.Locals(usercontext.KeyFromProtected, userCtx.IsLoggedIn)
		c.Locals(usercontext.KeyUserID, userID)
		c.Locals(usercontext.KeyIsAdmin, isAdmin)
		return c.Next()
	})

	user := app.Group("/", middleware.RequireAuth)
	user.Get("/my-plan", HandleGetMyPlan)
	user.Get("/my-plan/history", HandleGetMyHistory)
	user.Post("/purchase", HandlePurchasePlan)
	user.Post("/cancel", HandleCancelPlan)
	user.Get("/alerts", HandleGetAlerts)
	user.Put("/alerts/:id/read", HandleMarkAlertRead)

	return app, repos
}

func seedCatalogPlan(t *testing.T, repos *repository.Repositories, name string, price float64) *models.Plan {
	t.Helper()
	plan := &models.Plan{Name: name, MonthlyPrice: price, MonthlyQuotaGB: 100, IsActive: true}
	require.NoError(t, repos.Plan.Create(plan))
	return plan
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var parsed map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp, parsed
}

func TestMyPlanWithoutSubscription(t *testing.T) {
	app, _ := newPortalApp(t, 1, false)

	resp, body := doJSON(t, app, http.MethodGet, "/my-plan", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["has_plan"])
}

func TestPurchaseFlow(t *testing.T) {
	app, repos := newPortalApp(t, 1, false)
	plan := seedCatalogPlan(t, repos, "Basic", 9.99)

	resp, body := doJSON(t, app, http.MethodPost, "/purchase", fiber.Map{"plan_id": plan.ID})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	sub := body["subscription"].(map[string]any)
	assert.Equal(t, "active", sub["status"])
	assert.Equal(t, 9.99, sub["price_paid"])
	assert.Nil(t, sub["end_date"])

	resp, body = doJSON(t, app, http.MethodGet, "/my-plan", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["has_plan"])
}

func TestPurchaseUnknownPlan(t *testing.T) {
	app, _ := newPortalApp(t, 1, false)

	resp, body := doJSON(t, app, http.MethodPost, "/purchase", fiber.Map{"plan_id": 99})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestPurchaseConflict(t *testing.T) {
	app, repos := newPortalApp(t, 1, false)
	basic := seedCatalogPlan(t, repos, "Basic", 9.99)
	pro := seedCatalogPlan(t, repos, "Pro", 29.99)

	resp, _ := doJSON(t, app, http.MethodPost, "/purchase", fiber.Map{"plan_id": basic.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/purchase", fiber.Map{"plan_id": pro.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	// The original subscription is untouched.
	resp, body = doJSON(t, app, http.MethodGet, "/my-plan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sub := body["subscription"].(map[string]any)
	assert.Equal(t, float64(basic.ID), sub["plan_id"])
}

func TestCancelFlow(t *testing.T) {
	app, repos := newPortalApp(t, 1, false)
	plan := seedCatalogPlan(t, repos, "Basic", 9.99)

	resp, _ := doJSON(t, app, http.MethodPost, "/purchase", fiber.Map{"plan_id": plan.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/cancel", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	sub := body["subscription"].(map[string]any)
	assert.Equal(t, "cancelled", sub["status"])
	assert.NotNil(t, body["access_until"])

	// end_date lies in the future: access survives until the cycle closes.
	endDate, err := time.Parse(time.RFC3339, sub["end_date"].(string))
	require.NoError(t, err)
	assert.True(t, endDate.After(time.Now()))

	// A cancel retry within the paid window returns the same record.
	resp, retry := doJSON(t, app, http.MethodPost, "/cancel", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	retrySub := retry["subscription"].(map[string]any)
	assert.Equal(t, sub["id"], retrySub["id"])

	// Cancelling confirms via a system alert.
	alerts, err := repos.Alert.GetByUserID(1)
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	assert.Equal(t, models.AlertTypeSystem, alerts[0].Type)
}

func TestCancelWithoutSubscription(t *testing.T) {
	app, _ := newPortalApp(t, 1, false)

	resp, body := doJSON(t, app, http.MethodPost, "/cancel", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestSubscriptionHistory(t *testing.T) {
	app, repos := newPortalApp(t, 1, false)
	plan := seedCatalogPlan(t, repos, "Basic", 9.99)

	resp, _ := doJSON(t, app, http.MethodPost, "/purchase", fiber.Map{"plan_id": plan.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPost, "/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/my-plan/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["subscriptions"], 1)
}

func TestRoutesRequireAuth(t *testing.T) {
	app, _ := newPortalApp(t, 0, false) // anonymous

	resp, body := doJSON(t, app, http.MethodGet, "/my-plan", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestMarkAlertReadOwnership(t *testing.T) {
	app, repos := newPortalApp(t, 1, false)

	mine := &models.Alert{UserID: 1, Type: models.AlertTypeSystem, Title: "hi", Message: "msg"}
	require.NoError(t, repos.Alert.Create(mine))
	other := &models.Alert{UserID: 2, Type: models.AlertTypeSystem, Title: "hi", Message: "msg"}
	require.NoError(t, repos.Alert.Create(other))

	resp, body := doJSON(t, app, http.MethodPut, fmt.Sprintf("/alerts/%d/read", mine.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	alert := body["alert"].(map[string]any)
	assert.Equal(t, true, alert["is_read"])

	// Re-reading an already-read alert succeeds again.
	resp, _ = doJSON(t, app, http.MethodPut, fmt.Sprintf("/alerts/%d/read", mine.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPut, fmt.Sprintf("/alerts/%d/read", other.ID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPut, "/alerts/999/read", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAlertsNewestFirst(t *testing.T) {
	app, repos := newPortalApp(t, 1, false)

	older := &models.Alert{UserID: 1, Type: models.AlertTypeSystem, Title: "first", Message: "m", CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, repos.Alert.Create(older))
	newer := &models.Alert{UserID: 1, Type: models.AlertTypePlanExpiry, Title: "second", Message: "m", CreatedAt: time.Now()}
	require.NoError(t, repos.Alert.Create(newer))

	resp, body := doJSON(t, app, http.MethodGet, "/alerts", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	alerts := body["alerts"].([]any)
	require.Len(t, alerts, 2)
	assert.Equal(t, "second", alerts[0].(map[string]any)["title"])
	assert.Equal(t, float64(2), body["unread_count"])
}
