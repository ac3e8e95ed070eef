package controllers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/statistics"
)

// HandleAdminDashboard returns the cached headline numbers.
func HandleAdminDashboard(c *fiber.Ctx) error {
	data, err := statistics.GetDashboardData()
	if err != nil {
		log.Printf("dashboard statistics failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load dashboard")
	}
	return SuccessJSON(c, fiber.Map{"dashboard": data})
}

// HandleAdminAnalytics returns signup and revenue trends: daily signups over
// the requested window (default 30 days) and per-plan subscriber numbers.
func HandleAdminAnalytics(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days", "30"))
	if err != nil || days < 1 || days > 365 {
		days = 30
	}

	repos := repository.GetGlobalRepositories()

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	signups, err := repos.User.GetDailySignups(start, end)
	if err != nil {
		log.Printf("daily signup query failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load analytics")
	}

	planStats, err := repos.Subscription.GetPlanStats()
	if err != nil {
		log.Printf("plan stats query failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load analytics")
	}

	return SuccessJSON(c, fiber.Map{
		"days":           days,
		"daily_signups":  signups,
		"plan_breakdown": planStats,
	})
}

// HandleAdminListUsers returns a page of accounts, newest first.
func HandleAdminListUsers(c *fiber.Ctx) error {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.Query("per_page", "25"))
	if err != nil || perPage < 1 || perPage > 100 {
		perPage = 25
	}

	repos := repository.GetGlobalRepositories()

	users, err := repos.User.List((page-1)*perPage, perPage)
	if err != nil {
		log.Printf("user list failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load users")
	}
	total, err := repos.User.Count()
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load users")
	}

	list := make([]fiber.Map, 0, len(users))
	for i := range users {
		list = append(list, userResponse(&users[i]))
	}

	return SuccessJSON(c, fiber.Map{
		"users":    list,
		"page":     page,
		"per_page": perPage,
		"total":    total,
	})
}

// HandleAdminUserAuditLog returns the audit trail for one user.
func HandleAdminUserAuditLog(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid user id")
	}

	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage := 50

	logs, err := repository.GetGlobalRepositories().AuditLog.GetByUserID(userID, (page-1)*perPage, perPage)
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load audit log")
	}

	return SuccessJSON(c, fiber.Map{
		"audit_log": logs,
		"page":      page,
	})
}
