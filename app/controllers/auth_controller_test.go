package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/middleware"
	"github.com/cloudnetiq/planport/internal/pkg/usercontext"
)

func seedUser(t *testing.T, repos *repository.Repositories, email string) *models.User {
	t.Helper()
	user, err := models.CreateUser("Test User", email, "secret123")
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(user))
	return user
}

func TestIssueAndRevokeAPIKey(t *testing.T) {
	app, repos := newPortalApp(t, 1, false)
	seedUser(t, repos, "keys@example.com")

	app.Post("/me/api-key", HandleIssueAPIKey)
	app.Delete("/me/api-key", HandleRevokeAPIKey)

	resp, body := doJSON(t, app, http.MethodPost, "/me/api-key", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	rawKey := body["api_key"].(string)
	assert.True(t, len(rawKey) > 20)
	assert.Equal(t, rawKey[:16], body["prefix"])

	// Only the hash is stored.
	stored, err := repos.User.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, models.HashAPIKey(rawKey), stored.APIKeyHash)
	assert.NotEqual(t, rawKey, stored.APIKeyHash)

	resp, _ = doJSON(t, app, http.MethodDelete, "/me/api-key", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err = repos.User.GetByID(1)
	require.NoError(t, err)
	assert.False(t, stored.HasActiveAPIKey())
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	repository.SetGlobalRepositoriesForTesting(repos)
	user := seedUser(t, repos, "api@example.com")
	rawKey, err := user.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, repos.User.Update(user))

	app := fiber.New()
	app.Use(middleware.APIKeyAuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": usercontext.GetUserID(c)})
	})

	testCases := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{name: "x-api-key header", header: "X-API-Key", value: rawKey, wantStatus: http.StatusOK},
		{name: "bearer token", header: "Authorization", value: "Bearer " + rawKey, wantStatus: http.StatusOK},
		{name: "wrong key", header: "X-API-Key", value: "plp_nonsense", wantStatus: http.StatusUnauthorized},
		{name: "missing key", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestAPIKeyAuthRejectsDisabledUser(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	repository.SetGlobalRepositoriesForTesting(repos)
	user := seedUser(t, repos, "disabled@example.com")
	rawKey, err := user.IssueAPIKey()
	require.NoError(t, err)
	user.Status = models.STATUS_DISABLED
	require.NoError(t, repos.User.Update(user))

	app := fiber.New()
	app.Use(middleware.APIKeyAuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-API-Key", rawKey)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPIKeyRevocationCutsAccess(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	repository.SetGlobalRepositoriesForTesting(repos)
	user := seedUser(t, repos, "revoked@example.com")
	rawKey, err := user.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, repos.User.Update(user))

	app := fiber.New()
	app.Use(middleware.APIKeyAuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-API-Key", rawKey)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	user.RevokeAPIKey()
	require.NoError(t, repos.User.Update(user))

	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
