package controllers

import (
	"net/http"
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

func newUsageApp(t *testing.T, userID uint) (*fiber.App, *repository.Repositories) {
	t.Helper()

	repos := repository.NewMemoryRepositories()
	repository.SetGlobalRepositoriesForTesting(repos)
	ResetLedgerForTesting()

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(usercontext.KeyUserContext, usercontext.UserContext{
			UserID:     userID,
			IsLoggedIn: true,
		})
		return c.Next()
	})

	user := app.Group("/", middleware.RequireAuth)
	user.Get("/usage", HandleGetMyUsage)
	user.Post("/usage", HandleRecordUsage)
	user.Get("/recommendation", HandleGetRecommendation)
	user.Post("/purchase", HandlePurchasePlan)

	return app, repos
}

func TestRecordUsageWithoutSubscription(t *testing.T) {
	app, _ := newUsageApp(t, 1)

	resp, body := doJSON(t, app, http.MethodPost, "/usage", fiber.Map{"used_gb": 2.5})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestRecordUsageRejectsNonPositive(t *testing.T) {
	app, repos := newUsageApp(t, 1)
	plan := seedCatalogPlan(t, repos, "Basic", 9.99)
	resp, _ := doJSON(t, app, http.MethodPost, "/purchase", fiber.Map{"plan_id": plan.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/usage", fiber.Map{"used_gb": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/usage", fiber.Map{"used_gb": -3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecordAndReportUsage(t *testing.T) {
	app, repos := newUsageApp(t, 1)
	plan := seedCatalogPlan(t, repos, "Basic", 9.99)
	resp, _ := doJSON(t, app, http.MethodPost, "/purchase", fiber.Map{"plan_id": plan.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/usage", fiber.Map{"used_gb": 12.5})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPost, "/usage", fiber.Map{"used_gb": 7.5})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/usage", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 20.0, body["used_gb"])
	assert.Equal(t, float64(100), body["quota_gb"])
	assert.Len(t, body["samples"], 2)

	cycleEnd, err := time.Parse(time.RFC3339, body["cycle_end"].(string))
	require.NoError(t, err)
	assert.True(t, cycleEnd.After(time.Now()))
}

func TestRecommendationSuggestsUpgrade(t *testing.T) {
	app, repos := newUsageApp(t, 1)
	basic := seedCatalogPlan(t, repos, "Basic", 9.99)
	pro := &models.Plan{Name: "Pro", MonthlyPrice: 29.99, MonthlyQuotaGB: 500, IsActive: true}
	require.NoError(t, repos.Plan.Create(pro))

	resp, _ := doJSON(t, app, http.MethodPost, "/purchase", fiber.Map{"plan_id": basic.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// 90 of 100 GB used this cycle.
	resp, _ = doJSON(t, app, http.MethodPost, "/usage", fiber.Map{"used_gb": 90})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/recommendation", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rec := body["recommendation"].(map[string]any)
	assert.Equal(t, "upgrade", rec["action"])
	suggested := rec["suggested_plan"].(map[string]any)
	assert.Equal(t, "Pro", suggested["name"])
}

func TestRecommendationWithoutSubscription(t *testing.T) {
	app, _ := newUsageApp(t, 1)

	resp, _ := doJSON(t, app, http.MethodGet, "/recommendation", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
