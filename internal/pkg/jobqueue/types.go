package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeSubscriptionExpiry sweeps the ledger and expires cancelled
	// subscriptions whose paid window has lapsed.
	JobTypeSubscriptionExpiry JobType = "subscription_expiry"
	// JobTypeExpiryAlert scans for subscriptions ending soon and creates
	// plan_expiry alerts for their owners.
	JobTypeExpiryAlert JobType = "expiry_alert"
	// JobTypeUsageWarning checks one user's cycle usage against their quota.
	JobTypeUsageWarning JobType = "usage_warning"
	// JobTypeBillingReminder reminds active subscribers of an upcoming
	// cycle renewal.
	JobTypeBillingReminder JobType = "billing_reminder"
	// JobTypeAlertEmail delivers an alert by email.
	JobTypeAlertEmail JobType = "alert_email"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// UsageWarningJobPayload targets one user's running billing cycle.
type UsageWarningJobPayload struct {
	UserID         uint `json:"user_id"`
	SubscriptionID uint `json:"subscription_id"`
}

// ToMap converts the payload to a map for storage
func (p UsageWarningJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         p.UserID,
		"subscription_id": p.SubscriptionID,
	}
}

// UsageWarningJobPayloadFromMap creates a payload from a map
func UsageWarningJobPayloadFromMap(data map[string]interface{}) (*UsageWarningJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload UsageWarningJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// AlertEmailJobPayload carries everything the mailer needs, so delivery does
// not depend on the alert row still existing.
type AlertEmailJobPayload struct {
	UserID  uint   `json:"user_id"`
	AlertID uint   `json:"alert_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ToMap converts the payload to a map for storage
func (p AlertEmailJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  p.UserID,
		"alert_id": p.AlertID,
		"subject":  p.Subject,
		"body":     p.Body,
	}
}

// AlertEmailJobPayloadFromMap creates a payload from a map
func AlertEmailJobPayloadFromMap(data map[string]interface{}) (*AlertEmailJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload AlertEmailJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
