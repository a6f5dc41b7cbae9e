package tasks

import (
	"fmt"

	"github.com/mikestefanello/backlite"
)

// TypeInfo describes a task type that can be triggered manually.
type TypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// Types lists every task type in the order shown to operators.
var Types = []TypeInfo{
	{Type: "backup_database", Description: "Back up the clinic database now", Queue: "backup_database"},
	{Type: "cleanup_audit_events", Description: "Delete activity log rows past retention", Queue: "cleanup_audit_events"},
	{Type: "inventory_alerts", Description: "Scan stock for low quantities and expiry", Queue: "inventory_alerts"},
	{Type: "appointment_reminders", Description: "Mark upcoming appointments for reminder calls", Queue: "appointment_reminders"},
}

// RunRequest carries optional parameters for a manual run.
type RunRequest struct {
	RetentionDays int `json:"retention_days,omitempty" form:"retention_days"`
	WarningDays   int `json:"warning_days,omitempty" form:"warning_days"`
	LeadHours     int `json:"lead_hours,omitempty" form:"lead_hours"`
}

// NewTask builds the task for taskType. userID is recorded on tasks that audit.
func NewTask(taskType string, req RunRequest, userID uint) (backlite.Task, error) {
	switch taskType {
	case "backup_database":
		return BackupDatabaseTask{Trigger: "manual", UserID: userID}, nil
	case "cleanup_audit_events":
		return CleanupAuditEventsTask{RetentionDays: req.RetentionDays}, nil
	case "inventory_alerts":
		return InventoryAlertsTask{WarningDays: req.WarningDays}, nil
	case "appointment_reminders":
		return AppointmentRemindersTask{LeadHours: req.LeadHours}, nil
	default:
		return nil, fmt.Errorf("unknown task type: %s", taskType)
	}
}
