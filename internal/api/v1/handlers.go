package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/cloudnetiq/planport/app/controllers"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface lists the operations of the public v1 API, mirroring
// public/docs/v1/openapi.yml.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error
	GetPlans(c *fiber.Ctx) error
	GetPlan(c *fiber.Ctx) error
	GetMyPlan(c *fiber.Ctx) error
	PostPurchase(c *fiber.Ctx) error
	PostCancel(c *fiber.Ctx) error
	GetSubscriptionHistory(c *fiber.Ctx) error
	GetAlerts(c *fiber.Ctx) error
	PutAlertRead(c *fiber.Ctx) error
	GetUsage(c *fiber.Ctx) error
	PostUsage(c *fiber.Ctx) error
	GetRecommendation(c *fiber.Ctx) error
	GetAccount(c *fiber.Ctx) error
}

// APIServer implements the ServerInterface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetPlans lists the purchasable catalog.
func (s *APIServer) GetPlans(c *fiber.Ctx) error {
	return controllers.HandleGetPlans(c)
}

// GetPlan returns one catalog entry.
func (s *APIServer) GetPlan(c *fiber.Ctx) error {
	return controllers.HandleGetPlan(c)
}

// GetMyPlan returns the caller's active subscription.
func (s *APIServer) GetMyPlan(c *fiber.Ctx) error {
	return controllers.HandleGetMyPlan(c)
}

// PostPurchase subscribes the caller to a plan.
func (s *APIServer) PostPurchase(c *fiber.Ctx) error {
	return controllers.HandlePurchasePlan(c)
}

// PostCancel cancels the caller's active subscription.
func (s *APIServer) PostCancel(c *fiber.Ctx) error {
	return controllers.HandleCancelPlan(c)
}

// GetSubscriptionHistory lists the caller's subscription rows.
func (s *APIServer) GetSubscriptionHistory(c *fiber.Ctx) error {
	return controllers.HandleGetMyHistory(c)
}

// GetAlerts lists the caller's alerts.
func (s *APIServer) GetAlerts(c *fiber.Ctx) error {
	return controllers.HandleGetAlerts(c)
}

// PutAlertRead marks one alert as read.
func (s *APIServer) PutAlertRead(c *fiber.Ctx) error {
	return controllers.HandleMarkAlertRead(c)
}

// GetUsage reports the running billing cycle.
func (s *APIServer) GetUsage(c *fiber.Ctx) error {
	return controllers.HandleGetMyUsage(c)
}

// PostUsage records a metered usage sample.
func (s *APIServer) PostUsage(c *fiber.Ctx) error {
	return controllers.HandleRecordUsage(c)
}

// GetRecommendation suggests a better-fitting plan.
func (s *APIServer) GetRecommendation(c *fiber.Ctx) error {
	return controllers.HandleGetRecommendation(c)
}

// GetAccount returns the authenticated account.
func (s *APIServer) GetAccount(c *fiber.Ctx) error {
	return controllers.HandleGetMe(c)
}

// RegisterHandlers attaches all v1 operations to the given router group.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	router.Get("/ping", si.GetPing)
	router.Get("/plans", si.GetPlans)
	router.Get("/plans/:id", si.GetPlan)
	router.Get("/my-plan", si.GetMyPlan)
	router.Get("/my-plan/history", si.GetSubscriptionHistory)
	router.Post("/purchase", si.PostPurchase)
	router.Post("/cancel", si.PostCancel)
	router.Get("/alerts", si.GetAlerts)
	router.Put("/alerts/:id/read", si.PutAlertRead)
	router.Get("/usage", si.GetUsage)
	router.Post("/usage", si.PostUsage)
	router.Get("/recommendation", si.GetRecommendation)
	router.Get("/account", si.GetAccount)
}
