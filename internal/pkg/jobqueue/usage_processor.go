package jobqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/mail"
)

// usageWarningThreshold is the quota share above which the user is warned.
const usageWarningThreshold = 0.8

// processUsageWarningJob checks one user's running billing cycle against
// their plan quota and drops a usage_warning alert when it crosses the
// threshold. At most one warning per cycle.
func (q *Queue) processUsageWarningJob(job *Job) error {
	payload, err := UsageWarningJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid usage warning payload: %w", err)
	}

	repos := repository.GetGlobalRepositories()

	sub, err := repos.Subscription.GetActiveByUserID(payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Subscription gone between enqueue and processing; nothing to warn about.
			return nil
		}
		return err
	}
	if sub.ID != payload.SubscriptionID {
		return nil
	}

	quota := sub.Plan.MonthlyQuotaGB
	if quota <= 0 {
		return nil
	}

	now := time.Now()
	cycleEnd := sub.CurrentPeriodEnd(now)
	cycleStart := cycleEnd.Add(-models.BillingCycle)

	used, err := repos.Usage.SumBySubscriptionID(sub.ID, cycleStart, cycleEnd)
	if err != nil {
		return fmt.Errorf("usage sum failed: %w", err)
	}
	if used < usageWarningThreshold*float64(quota) {
		return nil
	}

	exists, err := repos.Alert.ExistsSince(payload.UserID, models.AlertTypeUsageWarning, cycleStart)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	alert := &models.Alert{
		UserID: payload.UserID,
		Type:   models.AlertTypeUsageWarning,
		Title:  "Data usage warning",
		Message: fmt.Sprintf("You have used %.1f GB of your %d GB monthly quota (%.0f%%).",
			used, quota, used/float64(quota)*100),
	}
	if err := repos.Alert.Create(alert); err != nil {
		return fmt.Errorf("usage warning alert create failed: %w", err)
	}

	emailPayload := AlertEmailJobPayload{
		UserID:  payload.UserID,
		AlertID: alert.ID,
		Subject: alert.Title,
		Body:    alert.Message,
	}
	if _, err := q.EnqueueJob(JobTypeAlertEmail, emailPayload.ToMap()); err != nil {
		log.Errorf("[JobQueue] Failed to enqueue usage warning mail for user %d: %v", payload.UserID, err)
	}

	return nil
}

// processAlertEmailJob delivers an alert by email.
func (q *Queue) processAlertEmailJob(job *Job) error {
	payload, err := AlertEmailJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid alert email payload: %w", err)
	}

	user, err := repository.GetGlobalRepositories().User.GetByID(payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	return mail.SendMail(user.Email, payload.Subject, payload.Body)
}
