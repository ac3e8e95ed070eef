package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/cloudnetiq/planport/internal/api/v1"
	"github.com/cloudnetiq/planport/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes: key-authenticated except ping and the public catalog
	apiKeyAuth := middleware.APIKeyAuthMiddleware()
	v1 := api.Group("/v1", func(c *fiber.Ctx) error {
		if isPublicV1Path(c.Path()) {
			return c.Next()
		}
		return apiKeyAuth(c)
	})

	apiServer := apiv1.NewAPIServer()
	apiv1.RegisterHandlers(v1, apiServer)
}

func isPublicV1Path(path string) bool {
	return path == "/api/v1/ping" ||
		path == "/api/v1/plans" ||
		strings.HasPrefix(path, "/api/v1/plans/")
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
