package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/cache"
)

const (
	planCatalogCacheKey = "plans:catalog"
	planCatalogCacheTTL = 30 * time.Minute
)

// HandleGetPlans lists the purchasable catalog, cheapest first. The rendered
// list is cached in Redis and invalidated on any admin catalog change.
func HandleGetPlans(c *fiber.Ctx) error {
	var cached []fiber.Map
	if err := cache.GetJSON(planCatalogCacheKey, &cached); err == nil {
		return SuccessJSON(c, fiber.Map{"plans": cached})
	}

	repos := repository.GetGlobalRepositories()
	plans, err := repos.Plan.GetActive()
	if err != nil {
		log.Printf("plan catalog query failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load plans")
	}

	discounts, err := repos.Discount.GetCurrent(time.Now())
	if err != nil {
		log.Printf("discount query failed: %v", err)
		discounts = nil
	}

	list := make([]fiber.Map, 0, len(plans))
	for i := range plans {
		list = append(list, catalogEntry(&plans[i], discounts))
	}

	if err := cache.SetJSON(planCatalogCacheKey, list, planCatalogCacheTTL); err != nil {
		log.Printf("plan catalog cache write failed: %v", err)
	}

	return SuccessJSON(c, fiber.Map{"plans": list})
}

// HandleGetPlan returns a single catalog entry. Retired plans stay readable
// so existing subscribers can still see what they are on.
func HandleGetPlan(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid plan id")
	}

	repos := repository.GetGlobalRepositories()
	plan, err := repos.Plan.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrorJSON(c, fiber.StatusNotFound, "Plan not found")
		}
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load plan")
	}

	discounts, err := repos.Discount.GetCurrent(time.Now())
	if err != nil {
		discounts = nil
	}

	return SuccessJSON(c, fiber.Map{"plan": catalogEntry(plan, discounts)})
}

// HandleGetDiscounts lists the promotions running right now.
func HandleGetDiscounts(c *fiber.Ctx) error {
	discounts, err := repository.GetGlobalRepositories().Discount.GetCurrent(time.Now())
	if err != nil {
		log.Printf("discount query failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load discounts")
	}

	list := make([]fiber.Map, 0, len(discounts))
	for i := range discounts {
		d := &discounts[i]
		entry := fiber.Map{
			"id":          d.ID,
			"name":        d.Name,
			"description": d.Description,
			"percent_off": d.PercentOff,
			"valid_until": d.ValidUntil.UTC().Format(time.RFC3339),
		}
		if d.PlanID != nil {
			entry["plan_id"] = *d.PlanID
		}
		list = append(list, entry)
	}
	return SuccessJSON(c, fiber.Map{"discounts": list})
}

// catalogEntry renders a plan with the best currently running discount
// applied. Plan-specific discounts and portal-wide ones (nil PlanID) both
// qualify; the largest percentage wins.
func catalogEntry(plan *models.Plan, discounts []models.Discount) fiber.Map {
	entry := planResponse(plan)

	var best *models.Discount
	for i := range discounts {
		d := &discounts[i]
		if d.PlanID != nil && *d.PlanID != plan.ID {
			continue
		}
		if best == nil || d.PercentOff > best.PercentOff {
			best = d
		}
	}
	if best != nil {
		entry["discount"] = fiber.Map{
			"name":        best.Name,
			"percent_off": best.PercentOff,
			"valid_until": best.ValidUntil.UTC().Format(time.RFC3339),
		}
		entry["discounted_price"] = best.DiscountedPrice(plan.MonthlyPrice)
	}
	return entry
}

// invalidatePlanCache drops the cached catalog after admin changes.
func invalidatePlanCache() {
	if err := cache.Delete(planCatalogCacheKey); err != nil {
		log.Printf("plan catalog cache invalidation failed: %v", err)
	}
}
