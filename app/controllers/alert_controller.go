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

// HandleGetAlerts lists the caller's alerts, newest first, plus the unread
// count the portal badge shows.
func HandleGetAlerts(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	alerts, err := repos.Alert.GetByUserID(userCtx.UserID)
	if err != nil {
		log.Printf("alert list failed for user %d: %v", userCtx.UserID, err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load alerts")
	}

	unread, err := repos.Alert.CountUnreadByUserID(userCtx.UserID)
	if err != nil {
		log.Printf("unread count failed for user %d: %v", userCtx.UserID, err)
	}

	list := make([]fiber.Map, 0, len(alerts))
	for i := range alerts {
		list = append(list, alertResponse(&alerts[i]))
	}

	return SuccessJSON(c, fiber.Map{
		"alerts":       list,
		"unread_count": unread,
	})
}

// HandleMarkAlertRead flips one alert to read. Only the owner may touch it;
// marking an already-read alert succeeds again.
func HandleMarkAlertRead(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid alert id")
	}

	repos := repository.GetGlobalRepositories()
	alert, err := repos.Alert.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrorJSON(c, fiber.StatusNotFound, "Alert not found")
		}
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load alert")
	}

	if alert.UserID != userCtx.UserID {
		return ErrorJSON(c, fiber.StatusForbidden, "Alert belongs to another user")
	}

	if err := repos.Alert.MarkRead(alert); err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to update alert")
	}

	return SuccessJSON(c, fiber.Map{"alert": alertResponse(alert)})
}

func alertResponse(alert *models.Alert) fiber.Map {
	return fiber.Map{
		"id":         alert.ID,
		"type":       alert.Type,
		"title":      alert.Title,
		"message":    alert.Message,
		"is_read":    alert.IsRead,
		"created_at": alert.CreatedAt.UTC().Format(time.RFC3339),
	}
}
