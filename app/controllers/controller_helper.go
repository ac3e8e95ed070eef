package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cloudnetiq/planport/app/models"
)

var validate = validator.New()

// SuccessJSON wraps a payload into the portal's response envelope.
func SuccessJSON(c *fiber.Ctx, payload fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(body)
}

// ErrorJSON renders the error envelope with the given HTTP status.
func ErrorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	return parseUintValue(c.Params(name))
}

func parseUintValue(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.ErrBadRequest
	}
	return uint(id), nil
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// GetClientIP prefers proxy headers over the socket address.
func GetClientIP(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(c.Get("X-Real-IP")); real != "" {
		return real
	}
	return c.IP()
}

// subscriptionResponse is the JSON shape shared by my-plan, purchase and
// cancel responses.
func subscriptionResponse(sub *models.Subscription) fiber.Map {
	resp := fiber.Map{
		"id":         sub.ID,
		"plan_id":    sub.PlanID,
		"status":     sub.Status,
		"price_paid": sub.PricePaid,
		"start_date": sub.StartDate.UTC().Format(time.RFC3339),
		"end_date":   formatTimePtr(sub.EndDate),
	}
	if sub.CancelledAt != nil {
		resp["cancelled_at"] = formatTimePtr(sub.CancelledAt)
	}
	if sub.Plan.ID != 0 {
		resp["plan"] = planResponse(&sub.Plan)
	}
	return resp
}

func planResponse(plan *models.Plan) fiber.Map {
	return fiber.Map{
		"id":               plan.ID,
		"name":             plan.Name,
		"description":      plan.Description,
		"monthly_price":    plan.MonthlyPrice,
		"monthly_quota_gb": plan.MonthlyQuotaGB,
		"is_active":        plan.IsActive,
	}
}
