package models

import (
	"encoding/json"
	"log"
	"time"
)

const (
	AuditActionUserSignup    = "user_signup"
	AuditActionUserLogin     = "user_login"
	AuditActionPlanPurchased = "plan_purchased"
	AuditActionPlanCancelled = "plan_cancelled"
	AuditActionPlanCreated   = "plan_created"
	AuditActionPlanUpdated   = "plan_updated"
	AuditActionPlanDisabled  = "plan_disabled"
)

// AuditLog records who changed what. Values are stored as JSON text so the
// admin area can render diffs without schema knowledge.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Action    string    `gorm:"type:varchar(100);index" json:"action"`
	TableName string    `gorm:"type:varchar(100)" json:"table_name"`
	RecordID  uint      `json:"record_id"`
	OldValues string    `gorm:"type:text" json:"old_values,omitempty"`
	NewValues string    `gorm:"type:text" json:"new_values,omitempty"`
	IPAddress string    `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent string    `gorm:"type:varchar(255)" json:"user_agent"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// AuditEntry carries the request-scoped fields controllers pass along.
type AuditEntry struct {
	UserID    uint
	Action    string
	TableName string
	RecordID  uint
	OldValues map[string]any
	NewValues map[string]any
	IPAddress string
	UserAgent string
}

// ToLog converts the entry into a persistable AuditLog row. Marshal failures
// are logged and leave the value column empty rather than failing the
// business operation.
func (e AuditEntry) ToLog() AuditLog {
	row := AuditLog{
		UserID:    e.UserID,
		Action:    e.Action,
		TableName: e.TableName,
		RecordID:  e.RecordID,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	}
	row.OldValues = marshalValues(e.OldValues)
	row.NewValues = marshalValues(e.NewValues)
	return row
}

func marshalValues(values map[string]any) string {
	if len(values) == 0 {
		return ""
	}
	data, err := json.Marshal(values)
	if err != nil {
		log.Printf("audit: failed to marshal values: %v", err)
		return ""
	}
	return string(data)
}
