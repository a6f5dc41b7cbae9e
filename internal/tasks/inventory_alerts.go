package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/entities"
)

const defaultExpiryWarningDays = 90

// InventoryChecker reads the stock conditions that need attention.
type InventoryChecker interface {
	LowStock() ([]entities.InventoryItem, error)
	ExpiringSoon(now time.Time, days int) ([]entities.InventoryItem, error)
	Expired(now time.Time) ([]entities.InventoryItem, error)
}

// SystemAuditor records events raised by background jobs.
type SystemAuditor interface {
	LogSystem(eventType entities.AuditEventType, action, description string, details any)
}

// InventoryAlertsTask scans stock for low quantities and expiry.
type InventoryAlertsTask struct {
	WarningDays int `json:"warning_days"`
}

func (t InventoryAlertsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "inventory_alerts",
		MaxAttempts: 2,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// InventoryAlert summarises one scan.
type InventoryAlert struct {
	LowStock []string `json:"low_stock"`
	Expiring []string `json:"expiring"`
	Expired  []string `json:"expired"`
}

func (a InventoryAlert) Empty() bool {
	return len(a.LowStock) == 0 && len(a.Expiring) == 0 && len(a.Expired) == 0
}

// ScanInventory collects item codes for every alert condition at now.
func ScanInventory(checker InventoryChecker, now time.Time, warningDays int) (InventoryAlert, error) {
	if warningDays <= 0 {
		warningDays = defaultExpiryWarningDays
	}
	var alert InventoryAlert

	low, err := checker.LowStock()
	if err != nil {
		return alert, fmt.Errorf("low stock: %w", err)
	}
	expiring, err := checker.ExpiringSoon(now, warningDays)
	if err != nil {
		return alert, fmt.Errorf("expiring items: %w", err)
	}
	expired, err := checker.Expired(now)
	if err != nil {
		return alert, fmt.Errorf("expired items: %w", err)
	}

	alert.LowStock = itemCodes(low)
	alert.Expiring = itemCodes(expiring)
	alert.Expired = itemCodes(expired)
	return alert, nil
}

func itemCodes(items []entities.InventoryItem) []string {
	codes := make([]string, len(items))
	for i, item := range items {
		codes[i] = item.Code
	}
	return codes
}

// InventoryAlertsProcessor creates a processor function for InventoryAlertsTask.
func InventoryAlertsProcessor(checker InventoryChecker, auditor SystemAuditor) backlite.QueueProcessor[InventoryAlertsTask] {
	return func(ctx context.Context, task InventoryAlertsTask) error {
		if checker == nil {
			return fmt.Errorf("inventory checker not configured")
		}

		alert, err := ScanInventory(checker, time.Now(), task.WarningDays)
		if err != nil {
			return fmt.Errorf("inventory alerts: %w", err)
		}

		log.Info().
			Int("low_stock", len(alert.LowStock)).
			Int("expiring", len(alert.Expiring)).
			Int("expired", len(alert.Expired)).
			Msg("inventory scan finished")

		if !alert.Empty() && auditor != nil {
			auditor.LogSystem(entities.AuditEventInventory, "inventory_alert",
				fmt.Sprintf("%d low stock, %d expiring, %d expired",
					len(alert.LowStock), len(alert.Expiring), len(alert.Expired)),
				alert)
		}
		return nil
	}
}

func NewInventoryAlertsQueue(checker InventoryChecker, auditor SystemAuditor) backlite.Queue {
	return backlite.NewQueue(InventoryAlertsProcessor(checker, auditor))
}
