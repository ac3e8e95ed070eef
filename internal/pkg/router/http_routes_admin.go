package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cloudnetiq/planport/app/controllers"
	"github.com/cloudnetiq/planport/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminDashboard)
	adminGroup.Get("/analytics", controllers.HandleAdminAnalytics)
	adminGroup.Get("/users", controllers.HandleAdminListUsers)
	adminGroup.Get("/users/:id/audit-log", controllers.HandleAdminUserAuditLog)

	// Catalog management
	adminGroup.Get("/plans", controllers.HandleAdminListPlans)
	adminGroup.Post("/plans", controllers.HandleAdminCreatePlan)
	adminGroup.Put("/plans/:id", controllers.HandleAdminUpdatePlan)
	adminGroup.Post("/plans/:id/disable", controllers.HandleAdminDisablePlan)

	// Promotions
	adminGroup.Get("/discounts", controllers.HandleAdminListDiscounts)
	adminGroup.Post("/discounts", controllers.HandleAdminCreateDiscount)
	adminGroup.Post("/discounts/:id/disable", controllers.HandleAdminDisableDiscount)
}
