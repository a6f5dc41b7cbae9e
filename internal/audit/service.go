package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/clinicmgr/clinic/internal/database/audit"
	"github.com/clinicmgr/clinic/internal/entities"
)

// Service provides high-level activity logging. Writes made through the
// Log* helpers are asynchronous; Wait blocks until they have landed.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records an event synchronously.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an event in the background. Failures are logged, never returned.
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Error().Err(err).Str("action", event.Action).Msg("failed to log audit event")
		}
	}()
}

// Wait blocks until every pending asynchronous write has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogActivity records a create/update/delete style change to a record.
// details, when non-nil, is stored as the event metadata.
func (s *Service) LogActivity(userID uint, eventType entities.AuditEventType, entityType string, recordID uint, description string, details any) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   eventType,
		Action:      entityType + "_" + string(eventType),
		Description: truncate(description, 500),
		EntityType:  entityType,
		Status:      entities.AuditStatusSuccess,
	}
	if recordID > 0 {
		event.EntityID = &recordID
	}
	event.Metadata = marshalMetadata(details)

	s.LogAsync(event)
}

// LogPayment records a payment against an invoice.
func (s *Service) LogPayment(userID, invoiceID uint, invoiceNumber string, amount decimal.Decimal, method entities.PaymentMethod) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventPayment,
		Action:      "payment_add",
		Description: fmt.Sprintf("Payment of %s on %s", amount.StringFixed(2), invoiceNumber),
		EntityType:  "invoice",
		EntityID:    &invoiceID,
		Status:      entities.AuditStatusSuccess,
		Metadata: marshalMetadata(map[string]any{
			"amount": amount.StringFixed(2),
			"method": method,
		}),
	}

	s.LogAsync(event)
}

// LogDelete records a deletion. Permanent deletes get their own action name.
func (s *Service) LogDelete(userID uint, entityType string, entityID uint, entityName string, permanent bool) {
	action := entityType + "_delete"
	if permanent {
		action = entityType + "_delete_permanent"
	}

	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventDelete,
		Action:      action,
		Description: truncate("Deleted "+entityType+": "+entityName, 500),
		EntityType:  entityType,
		EntityID:    &entityID,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(event)
}

// LogAuth records a login, logout or token event.
func (s *Service) LogAuth(userID uint, action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

func (s *Service) LogSettings(userID uint, action, description string) {
	s.LogAsync(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventSettings,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	})
}

// LogBackup records a backup or restore run and its outcome.
func (s *Service) LogBackup(userID uint, action, file string, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventBackup,
		Action:      action,
		Description: file,
		EntityType:  "database",
		Status:      entities.AuditStatusSuccess,
	}
	withError(event, err)

	s.LogAsync(event)
}

// LogExport records an export of kind into file.
func (s *Service) LogExport(userID uint, kind, file string, rows int, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventExport,
		Action:      kind + "_export",
		Description: file,
		Status:      entities.AuditStatusSuccess,
		Metadata:    marshalMetadata(map[string]any{"rows": rows}),
	}
	withError(event, err)

	s.LogAsync(event)
}

// LogSystem records an event raised by a background job rather than a user.
func (s *Service) LogSystem(eventType entities.AuditEventType, action, description string, details any) {
	s.LogAsync(&entities.AuditEvent{
		EventType:   eventType,
		Action:      action,
		Description: truncate(description, 500),
		Status:      entities.AuditStatusSuccess,
		Metadata:    marshalMetadata(details),
	})
}

func (s *Service) Events(f audit.Filter) ([]entities.AuditEvent, int64, error) {
	return s.repo.Events(f)
}

func (s *Service) ForRecord(entityType string, id uint) ([]entities.AuditEvent, error) {
	return s.repo.ForRecord(entityType, id)
}

// DeleteOldEvents removes events older than retention.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func withError(event *entities.AuditEvent, err error) {
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
}

func marshalMetadata(details any) []byte {
	if details == nil {
		return nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		log.Warn().Err(err).Msg("audit metadata dropped")
		return nil
	}
	return data
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
