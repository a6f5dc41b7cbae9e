// Package audit stores and queries the staff activity log.
package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

const defaultPageSize = 50

// Filter selects activity log rows. Zero fields match everything.
type Filter struct {
	UserID     uint
	EventType  entities.AuditEventType
	EntityType string
	EntityID   uint
	Since      time.Time
	Limit      int
	Offset     int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an activity log row.
func (r *Repository) LogEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.Status == "" {
		event.Status = entities.AuditStatusSuccess
	}
	return r.db.Create(event).Error
}

// Events returns one page of matching rows, newest first, and the total match count.
func (r *Repository) Events(f Filter) ([]entities.AuditEvent, int64, error) {
	query := r.db.Model(&entities.AuditEvent{})
	if f.UserID > 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.EventType != "" {
		query = query.Where("event_type = ?", f.EventType)
	}
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		query = query.Where("entity_id = ?", f.EntityID)
	}
	if !f.Since.IsZero() {
		query = query.Where("created_at > ?", f.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := f.Limit, f.Offset
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var events []entities.AuditEvent
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// ForRecord returns the full history of one record, newest first.
func (r *Repository) ForRecord(entityType string, id uint) ([]entities.AuditEvent, error) {
	var events []entities.AuditEvent
	err := r.db.Where("entity_type = ? AND entity_id = ?", entityType, id).
		Order("created_at DESC, id DESC").
		Find(&events).Error
	return events, err
}

// DeleteOldEvents removes rows older than olderThan and returns how many went.
func (r *Repository) DeleteOldEvents(olderThan time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", olderThan).Delete(&entities.AuditEvent{})
	return result.RowsAffected, result.Error
}

func (r *Repository) GetEventByID(id uint) (*entities.AuditEvent, error) {
	var event entities.AuditEvent
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}
