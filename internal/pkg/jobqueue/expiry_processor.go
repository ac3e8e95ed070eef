package jobqueue

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/statistics"
)

// ExpiryAlertLeadTime is how far before a subscription's end date the owner
// gets a plan_expiry alert.
const ExpiryAlertLeadTime = 48 * time.Hour

// BillingReminderLeadTime is how far before a cycle renewal the owner gets a
// billing_reminder alert.
const BillingReminderLeadTime = 72 * time.Hour

// processSubscriptionExpiryJob flips every subscription whose end date has
// been reached to expired, freeing the user's purchase slot.
func (q *Queue) processSubscriptionExpiryJob(job *Job) error {
	repos := repository.GetGlobalRepositories()

	affected, err := repos.Subscription.ExpireDue(time.Now())
	if err != nil {
		return fmt.Errorf("expiry sweep failed: %w", err)
	}
	if affected > 0 {
		log.Infof("[JobQueue] Expired %d subscription(s)", affected)
		statistics.ResetCacheUpdateTimer()
	}
	return nil
}

// processExpiryAlertJob alerts users whose subscription ends within the lead
// time. One alert per subscription end: a plan_expiry alert created since the
// lead window opened suppresses duplicates on later sweeps.
func (q *Queue) processExpiryAlertJob(job *Job) error {
	repos := repository.GetGlobalRepositories()
	now := time.Now()

	ending, err := repos.Subscription.GetEndingBetween(now, now.Add(ExpiryAlertLeadTime))
	if err != nil {
		return fmt.Errorf("expiring subscription scan failed: %w", err)
	}

	for i := range ending {
		sub := &ending[i]
		windowStart := sub.EndDate.Add(-ExpiryAlertLeadTime)

		exists, err := repos.Alert.ExistsSince(sub.UserID, models.AlertTypePlanExpiry, windowStart)
		if err != nil {
			log.Errorf("[JobQueue] Expiry alert dedup check failed for user %d: %v", sub.UserID, err)
			continue
		}
		if exists {
			continue
		}

		planName := sub.Plan.Name
		if planName == "" {
			planName = fmt.Sprintf("plan #%d", sub.PlanID)
		}
		message := fmt.Sprintf("Your subscription to %s ends on %s.",
			planName, sub.EndDate.UTC().Format("2006-01-02"))

		alert := &models.Alert{
			UserID:  sub.UserID,
			Type:    models.AlertTypePlanExpiry,
			Title:   "Subscription ending soon",
			Message: message,
		}
		if err := repos.Alert.Create(alert); err != nil {
			log.Errorf("[JobQueue] Expiry alert create failed for user %d: %v", sub.UserID, err)
			continue
		}

		payload := AlertEmailJobPayload{
			UserID:  sub.UserID,
			AlertID: alert.ID,
			Subject: alert.Title,
			Body:    alert.Message,
		}
		if _, err := q.EnqueueJob(JobTypeAlertEmail, payload.ToMap()); err != nil {
			log.Errorf("[JobQueue] Failed to enqueue expiry mail for user %d: %v", sub.UserID, err)
		}
	}

	return nil
}

// processBillingReminderJob reminds active subscribers whose cycle renews
// within the lead time. One reminder per cycle: any billing_reminder created
// since the running cycle began suppresses duplicates.
func (q *Queue) processBillingReminderJob(job *Job) error {
	repos := repository.GetGlobalRepositories()
	now := time.Now()

	active, err := repos.Subscription.GetAllActive()
	if err != nil {
		return fmt.Errorf("active subscription scan failed: %w", err)
	}

	for i := range active {
		sub := &active[i]
		periodEnd := sub.CurrentPeriodEnd(now)
		if periodEnd.Sub(now) > BillingReminderLeadTime {
			continue
		}
		cycleStart := periodEnd.Add(-models.BillingCycle)

		exists, err := repos.Alert.ExistsSince(sub.UserID, models.AlertTypeBillingReminder, cycleStart)
		if err != nil {
			log.Errorf("[JobQueue] Billing reminder dedup check failed for user %d: %v", sub.UserID, err)
			continue
		}
		if exists {
			continue
		}

		planName := sub.Plan.Name
		if planName == "" {
			planName = fmt.Sprintf("plan #%d", sub.PlanID)
		}
		alert := &models.Alert{
			UserID: sub.UserID,
			Type:   models.AlertTypeBillingReminder,
			Title:  "Upcoming renewal",
			Message: fmt.Sprintf("Your subscription to %s renews on %s at %.2f.",
				planName, periodEnd.UTC().Format("2006-01-02"), sub.PricePaid),
		}
		if err := repos.Alert.Create(alert); err != nil {
			log.Errorf("[JobQueue] Billing reminder create failed for user %d: %v", sub.UserID, err)
			continue
		}

		payload := AlertEmailJobPayload{
			UserID:  sub.UserID,
			AlertID: alert.ID,
			Subject: alert.Title,
			Body:    alert.Message,
		}
		if _, err := q.EnqueueJob(JobTypeAlertEmail, payload.ToMap()); err != nil {
			log.Errorf("[JobQueue] Failed to enqueue reminder mail for user %d: %v", sub.UserID, err)
		}
	}

	return nil
}
