package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/usercontext"
)

type planRequest struct {
	Name           string  `json:"name" validate:"required,min=3,max=150"`
	Description    string  `json:"description"`
	MonthlyPrice   float64 `json:"monthly_price" validate:"gte=0"`
	MonthlyQuotaGB int     `json:"monthly_quota_gb" validate:"gt=0"`
}

type discountRequest struct {
	Name        string     `json:"name" validate:"required,min=3,max=150"`
	Description string     `json:"description"`
	PlanID      *uint      `json:"plan_id"`
	PercentOff  float64    `json:"percent_off" validate:"gt=0,lte=100"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidUntil  time.Time  `json:"valid_until" validate:"required"`
}

// HandleAdminListPlans returns the full catalog, retired plans included.
func HandleAdminListPlans(c *fiber.Ctx) error {
	plans, err := repository.GetGlobalRepositories().Plan.GetAll()
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load plans")
	}
	list := make([]fiber.Map, 0, len(plans))
	for i := range plans {
		list = append(list, planResponse(&plans[i]))
	}
	return SuccessJSON(c, fiber.Map{"plans": list})
}

// HandleAdminCreatePlan adds a plan to the catalog.
func HandleAdminCreatePlan(c *fiber.Ctx) error {
	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid plan data")
	}

	plan := &models.Plan{
		Name:           req.Name,
		Description:    req.Description,
		MonthlyPrice:   req.MonthlyPrice,
		MonthlyQuotaGB: req.MonthlyQuotaGB,
		IsActive:       true,
	}
	if err := repository.GetGlobalRepositories().Plan.Create(plan); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrorJSON(c, fiber.StatusConflict, "A plan with this name already exists")
		}
		log.Printf("plan create failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to create plan")
	}

	invalidatePlanCache()
	recordAudit(c, models.AuditEntry{
		UserID:    usercontext.GetUserID(c),
		Action:    models.AuditActionPlanCreated,
		TableName: "plans",
		RecordID:  plan.ID,
		NewValues: map[string]any{"name": plan.Name, "monthly_price": plan.MonthlyPrice},
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"plan":    planResponse(plan),
	})
}

// HandleAdminUpdatePlan edits a catalog entry. Price changes only affect
// future purchases; existing ledger rows keep their snapshotted price.
func HandleAdminUpdatePlan(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid plan id")
	}

	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid plan data")
	}

	repos := repository.GetGlobalRepositories()
	plan, err := repos.Plan.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrorJSON(c, fiber.StatusNotFound, "Plan not found")
		}
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load plan")
	}

	old := map[string]any{"name": plan.Name, "monthly_price": plan.MonthlyPrice, "monthly_quota_gb": plan.MonthlyQuotaGB}

	plan.Name = req.Name
	plan.Description = req.Description
	plan.MonthlyPrice = req.MonthlyPrice
	plan.MonthlyQuotaGB = req.MonthlyQuotaGB
	if err := repos.Plan.Update(plan); err != nil {
		log.Printf("plan update failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to update plan")
	}

	invalidatePlanCache()
	recordAudit(c, models.AuditEntry{
		UserID:    usercontext.GetUserID(c),
		Action:    models.AuditActionPlanUpdated,
		TableName: "plans",
		RecordID:  plan.ID,
		OldValues: old,
		NewValues: map[string]any{"name": plan.Name, "monthly_price": plan.MonthlyPrice, "monthly_quota_gb": plan.MonthlyQuotaGB},
	})

	return SuccessJSON(c, fiber.Map{"plan": planResponse(plan)})
}

// HandleAdminDisablePlan retires a plan from the catalog. Existing
// subscriptions are untouched; the plan just stops being purchasable.
func HandleAdminDisablePlan(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid plan id")
	}

	repos := repository.GetGlobalRepositories()
	if err := repos.Plan.Deactivate(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrorJSON(c, fiber.StatusNotFound, "Plan not found")
		}
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to disable plan")
	}

	invalidatePlanCache()
	recordAudit(c, models.AuditEntry{
		UserID:    usercontext.GetUserID(c),
		Action:    models.AuditActionPlanDisabled,
		TableName: "plans",
		RecordID:  id,
	})

	return SuccessJSON(c, fiber.Map{"message": "Plan disabled"})
}

// HandleAdminListDiscounts returns all discounts, expired ones included.
func HandleAdminListDiscounts(c *fiber.Ctx) error {
	discounts, err := repository.GetGlobalRepositories().Discount.GetAll()
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load discounts")
	}
	return SuccessJSON(c, fiber.Map{"discounts": discounts})
}

// HandleAdminCreateDiscount starts a promotion, portal-wide or bound to one
// plan.
func HandleAdminCreateDiscount(c *fiber.Ctx) error {
	var req discountRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid discount data")
	}

	repos := repository.GetGlobalRepositories()

	if req.PlanID != nil {
		if _, err := repos.Plan.GetByID(*req.PlanID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrorJSON(c, fiber.StatusNotFound, "Plan not found")
			}
			return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load plan")
		}
	}

	validFrom := time.Now()
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	if !req.ValidUntil.After(validFrom) {
		return ErrorJSON(c, fiber.StatusBadRequest, "valid_until must be after valid_from")
	}

	discount := &models.Discount{
		Name:        req.Name,
		Description: req.Description,
		PlanID:      req.PlanID,
		PercentOff:  req.PercentOff,
		ValidFrom:   validFrom,
		ValidUntil:  req.ValidUntil,
		IsActive:    true,
	}
	if err := repos.Discount.Create(discount); err != nil {
		log.Printf("discount create failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to create discount")
	}

	invalidatePlanCache()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"discount": discount,
	})
}

// HandleAdminDisableDiscount ends a promotion early.
func HandleAdminDisableDiscount(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid discount id")
	}

	if err := repository.GetGlobalRepositories().Discount.Deactivate(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrorJSON(c, fiber.StatusNotFound, "Discount not found")
		}
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to disable discount")
	}

	invalidatePlanCache()
	return SuccessJSON(c, fiber.Map{"message": "Discount disabled"})
}
