package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/advisor"
	"github.com/cloudnetiq/planport/internal/pkg/jobqueue"
	"github.com/cloudnetiq/planport/internal/pkg/ledger"
	"github.com/cloudnetiq/planport/internal/pkg/usercontext"
)

type recordUsageRequest struct {
	UsedGB float64 `json:"used_gb" validate:"required,gt=0"`
}

// HandleRecordUsage stores a metered usage sample against the caller's
// active subscription.
func HandleRecordUsage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req recordUsageRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "used_gb must be greater than zero")
	}

	sub, err := getLedger().Active(userCtx.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoActiveSubscription) {
			return ErrorJSON(c, fiber.StatusNotFound, "No active subscription")
		}
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load subscription")
	}

	record := &models.UsageRecord{
		SubscriptionID: sub.ID,
		UserID:         userCtx.UserID,
		UsedGB:         req.UsedGB,
		RecordedAt:     time.Now(),
	}
	if err := repository.GetGlobalRepositories().Usage.Create(record); err != nil {
		log.Printf("usage record failed for user %d: %v", userCtx.UserID, err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to record usage")
	}

	// Every new sample re-checks the quota in the background. The warning job
	// deduplicates per cycle, so enqueueing on each sample is safe.
	payload := jobqueue.UsageWarningJobPayload{UserID: userCtx.UserID, SubscriptionID: sub.ID}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeUsageWarning, payload.ToMap()); err != nil {
		log.Printf("usage warning enqueue failed for user %d: %v", userCtx.UserID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"record": fiber.Map{
			"id":          record.ID,
			"used_gb":     record.UsedGB,
			"recorded_at": record.RecordedAt.UTC().Format(time.RFC3339),
		},
	})
}

// HandleGetMyUsage reports the running billing cycle: quota, consumed total
// and the individual samples.
func HandleGetMyUsage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	sub, err := getLedger().Active(userCtx.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoActiveSubscription) {
			return ErrorJSON(c, fiber.StatusNotFound, "No active subscription")
		}
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load subscription")
	}

	now := time.Now()
	cycleEnd := sub.CurrentPeriodEnd(now)
	cycleStart := cycleEnd.Add(-models.BillingCycle)

	repos := repository.GetGlobalRepositories()
	records, err := repos.Usage.GetBySubscriptionID(sub.ID, cycleStart, cycleEnd)
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load usage")
	}

	var total float64
	samples := make([]fiber.Map, 0, len(records))
	for i := range records {
		total += records[i].UsedGB
		samples = append(samples, fiber.Map{
			"used_gb":     records[i].UsedGB,
			"recorded_at": records[i].RecordedAt.UTC().Format(time.RFC3339),
		})
	}

	return SuccessJSON(c, fiber.Map{
		"cycle_start": cycleStart.UTC().Format(time.RFC3339),
		"cycle_end":   cycleEnd.UTC().Format(time.RFC3339),
		"quota_gb":    sub.Plan.MonthlyQuotaGB,
		"used_gb":     total,
		"samples":     samples,
	})
}

// HandleGetRecommendation suggests a better-fitting plan based on the
// caller's average usage over the last three billing cycles.
func HandleGetRecommendation(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	sub, err := getLedger().Active(userCtx.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoActiveSubscription) {
			return ErrorJSON(c, fiber.StatusNotFound, "No active subscription")
		}
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load subscription")
	}

	repos := repository.GetGlobalRepositories()
	avg, err := repos.Usage.AverageCycleUsage(userCtx.UserID, 3)
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load usage")
	}

	catalog, err := repos.Plan.GetActive()
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load plans")
	}

	suggestion := advisor.Recommend(catalog, &sub.Plan, avg)

	resp := fiber.Map{
		"action":       suggestion.Action,
		"reason":       suggestion.Reason,
		"avg_usage_gb": suggestion.AvgUsageGB,
		"quota_gb":     suggestion.QuotaGB,
	}
	if suggestion.Plan != nil {
		resp["suggested_plan"] = planResponse(suggestion.Plan)
	}
	return SuccessJSON(c, fiber.Map{"recommendation": resp})
}
