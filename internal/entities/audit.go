package entities

import (
	"time"

	"gorm.io/datatypes"
)

type AuditEventType string

const (
	AuditEventCreate    AuditEventType = "create"
	AuditEventUpdate    AuditEventType = "update"
	AuditEventDelete    AuditEventType = "delete"
	AuditEventPayment   AuditEventType = "payment"
	AuditEventQueue     AuditEventType = "queue"
	AuditEventInventory AuditEventType = "inventory"
	AuditEventExport    AuditEventType = "export"
	AuditEventBackup    AuditEventType = "backup"
	AuditEventAuth      AuditEventType = "auth"
	AuditEventSettings  AuditEventType = "settings"
	AuditEventReminder  AuditEventType = "reminder"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// AuditEvent is one row of the staff activity log.
type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index" json:"user_id"`
	EventType   AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action      string         `gorm:"size:100" json:"action"`      // e.g., "patient_create", "payment_add"
	Description string         `gorm:"size:500" json:"description"` // Human-readable summary
	EntityType  string         `gorm:"index:idx_audit_entity;size:50" json:"entity_type"`
	EntityID    *uint          `gorm:"index:idx_audit_entity" json:"entity_id,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	IPAddress   string         `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent   string         `gorm:"size:500" json:"user_agent,omitempty"`
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
