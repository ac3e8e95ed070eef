package controllers

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/ledger"
	"github.com/cloudnetiq/planport/internal/pkg/usercontext"
)

var (
	ledgerMu       sync.Mutex
	ledgerInstance *ledger.Ledger
)

// getLedger returns the shared subscription ledger. A single instance keeps
// the per-user lock stripes effective across concurrent requests.
func getLedger() *ledger.Ledger {
	ledgerMu.Lock()
	defer ledgerMu.Unlock()
	if ledgerInstance == nil {
		repos := repository.GetGlobalRepositories()
		ledgerInstance = ledger.New(repos.Plan, repos.Subscription, repos.Discount)
	}
	return ledgerInstance
}

// ResetLedgerForTesting drops the shared ledger so the next request builds one
// against the current global repositories.
func ResetLedgerForTesting() {
	ledgerMu.Lock()
	defer ledgerMu.Unlock()
	ledgerInstance = nil
}

type purchaseRequest struct {
	PlanID uint `json:"plan_id" validate:"required,gt=0"`
}

// HandleGetMyPlan returns the caller's active subscription. No subscription is
// a normal answer, not an error: has_plan=false with HTTP 200.
func HandleGetMyPlan(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	sub, err := getLedger().Active(userCtx.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoActiveSubscription) {
			return SuccessJSON(c, fiber.Map{"has_plan": false})
		}
		log.Printf("active subscription lookup failed for user %d: %v", userCtx.UserID, err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load subscription")
	}

	return SuccessJSON(c, fiber.Map{
		"has_plan":     true,
		"subscription": subscriptionResponse(sub),
	})
}

// HandlePurchasePlan subscribes the caller to a plan. A user holding an
// active subscription must cancel first; a second purchase is a conflict.
func HandlePurchasePlan(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "plan_id is required")
	}

	sub, err := getLedger().Purchase(userCtx.UserID, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrPlanNotFound):
			return ErrorJSON(c, fiber.StatusNotFound, "Plan not found")
		case errors.Is(err, ledger.ErrAlreadySubscribed):
			return ErrorJSON(c, fiber.StatusConflict, "An active subscription already exists; cancel it first")
		default:
			log.Printf("purchase failed for user %d plan %d: %v", userCtx.UserID, req.PlanID, err)
			return ErrorJSON(c, fiber.StatusInternalServerError, "Purchase failed")
		}
	}

	recordAudit(c, models.AuditEntry{
		UserID:    userCtx.UserID,
		Action:    models.AuditActionPlanPurchased,
		TableName: "subscriptions",
		RecordID:  sub.ID,
		NewValues: map[string]any{"plan_id": sub.PlanID, "price_paid": sub.PricePaid},
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"subscription": subscriptionResponse(sub),
	})
}

// HandleCancelPlan cancels the caller's active subscription. Access continues
// until the end of the running billing cycle; the user is told when.
func HandleCancelPlan(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	sub, err := getLedger().Cancel(userCtx.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoActiveSubscription) {
			return ErrorJSON(c, fiber.StatusNotFound, "No active subscription to cancel")
		}
		log.Printf("cancel failed for user %d: %v", userCtx.UserID, err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Cancellation failed")
	}

	recordAudit(c, models.AuditEntry{
		UserID:    userCtx.UserID,
		Action:    models.AuditActionPlanCancelled,
		TableName: "subscriptions",
		RecordID:  sub.ID,
		NewValues: map[string]any{"end_date": sub.EndDate},
	})

	notifyCancellation(userCtx.UserID, sub)

	return SuccessJSON(c, fiber.Map{
		"subscription": subscriptionResponse(sub),
		"access_until": formatTimePtr(sub.EndDate),
	})
}

// HandleGetMyHistory lists all of the caller's subscription rows, newest
// first, as billing history.
func HandleGetMyHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	subs, err := repository.GetGlobalRepositories().Subscription.GetByUserID(userCtx.UserID)
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load history")
	}

	history := make([]fiber.Map, 0, len(subs))
	for i := range subs {
		history = append(history, subscriptionResponse(&subs[i]))
	}
	return SuccessJSON(c, fiber.Map{"subscriptions": history})
}

// notifyCancellation drops a confirmation alert. Best effort; a failed alert
// never fails the cancel.
func notifyCancellation(userID uint, sub *models.Subscription) {
	planName := sub.Plan.Name
	if planName == "" {
		planName = fmt.Sprintf("plan #%d", sub.PlanID)
	}
	message := fmt.Sprintf("Your subscription to %s was cancelled.", planName)
	if sub.EndDate != nil {
		message = fmt.Sprintf("Your subscription to %s was cancelled. Access continues until %s.",
			planName, sub.EndDate.UTC().Format("2006-01-02"))
	}
	alert := &models.Alert{
		UserID:  userID,
		Type:    models.AlertTypeSystem,
		Title:   "Subscription cancelled",
		Message: message,
	}
	if err := repository.GetGlobalRepositories().Alert.Create(alert); err != nil {
		log.Printf("cancel alert for user %d failed: %v", userID, err)
	}
}
