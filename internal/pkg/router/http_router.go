package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cloudnetiq/planport/app/controllers"
	"github.com/cloudnetiq/planport/internal/pkg/middleware"
	"github.com/cloudnetiq/planport/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerUserRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Auth
	app.Post("/signup", controllers.HandleSignup)
	app.Post("/login", controllers.HandleLogin)
	app.Post("/logout", controllers.HandleLogout)

	// Plan catalog is browsable without an account
	app.Get("/plans", controllers.HandleGetPlans)
	app.Get("/plans/:id", controllers.HandleGetPlan)
}

func (h HttpRouter) registerUserRoutes(app *fiber.App) {
	user := app.Group("/", middleware.RequireAuth)

	user.Get("/me", controllers.HandleGetMe)
	user.Post("/me/api-key", controllers.HandleIssueAPIKey)
	user.Delete("/me/api-key", controllers.HandleRevokeAPIKey)

	// Subscription ledger
	user.Get("/my-plan", controllers.HandleGetMyPlan)
	user.Get("/my-plan/history", controllers.HandleGetMyHistory)
	user.Post("/purchase", controllers.HandlePurchasePlan)
	user.Post("/cancel", controllers.HandleCancelPlan)

	// Alerts
	user.Get("/alerts", controllers.HandleGetAlerts)
	user.Put("/alerts/:id/read", controllers.HandleMarkAlertRead)

	// Running promotions
	user.Get("/discounts", controllers.HandleGetDiscounts)

	// Usage + recommendations
	user.Get("/usage", controllers.HandleGetMyUsage)
	user.Post("/usage", controllers.HandleRecordUsage)
	user.Get("/recommendation", controllers.HandleGetRecommendation)
}
