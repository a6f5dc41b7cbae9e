// Package surgeries provides database operations for scheduled and
// performed surgeries.
package surgeries

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	ErrSurgeryNotFound = errors.New("surgery not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrNameRequired    = errors.New("surgery name is required")
	ErrInvalidStatus   = errors.New("invalid surgery status")
	ErrNegativeCost    = errors.New("surgery cost cannot be negative")
)

var editableColumns = []string{
	"name", "type", "scheduled_date", "surgery_date", "doctor_id",
	"assistant_doctors", "anesthesia", "duration_minutes", "cost", "status", "notes",
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Add(s *entities.Surgery) error {
	if s.Status == "" {
		s.Status = entities.SurgeryStatusScheduled
	}
	if err := validate(s); err != nil {
		return err
	}

	var count int64
	if err := r.db.Model(&entities.Patient{}).Where("id = ?", s.PatientID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrPatientNotFound
	}

	if err := r.db.Create(s).Error; err != nil {
		return fmt.Errorf("failed to create surgery: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(id uint) (*entities.Surgery, error) {
	var s entities.Surgery
	if err := r.db.Preload("Patient").First(&s, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

// ForPatient returns a patient's surgeries, newest schedule first.
func (r *Repository) ForPatient(patientID uint) ([]entities.Surgery, error) {
	var list []entities.Surgery
	err := r.db.Where("patient_id = ?", patientID).
		Order("scheduled_date DESC, id DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Upcoming returns surgeries still scheduled within the next days days.
func (r *Repository) Upcoming(now time.Time, days int) ([]entities.Surgery, error) {
	var list []entities.Surgery
	err := r.db.Preload("Patient").
		Where("status = ? AND scheduled_date BETWEEN ? AND ?",
			entities.SurgeryStatusScheduled, now, now.AddDate(0, 0, days)).
		Order("scheduled_date ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ByDateRange returns surgeries scheduled in [from, to).
func (r *Repository) ByDateRange(from, to time.Time) ([]entities.Surgery, error) {
	var list []entities.Surgery
	err := r.db.Preload("Patient").
		Where("scheduled_date >= ? AND scheduled_date < ?", from, to).
		Order("scheduled_date ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Repository) Update(s *entities.Surgery) error {
	if err := validate(s); err != nil {
		return err
	}
	result := r.db.Model(&entities.Surgery{ID: s.ID}).Select(editableColumns).Updates(s)
	if result.Error != nil {
		return fmt.Errorf("failed to update surgery: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSurgeryNotFound
	}
	return nil
}

// UpdateStatus changes the status. Completing a surgery without a
// recorded date stamps it with at.
func (r *Repository) UpdateStatus(id uint, status entities.SurgeryStatus, at time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	updates := map[string]any{"status": status}
	if status == entities.SurgeryStatusCompleted {
		updates["surgery_date"] = gorm.Expr("COALESCE(surgery_date, ?)", at)
	}
	result := r.db.Model(&entities.Surgery{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSurgeryNotFound
	}
	return nil
}

func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&entities.Surgery{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSurgeryNotFound
	}
	return nil
}

func validate(s *entities.Surgery) error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return ErrNameRequired
	}
	if !s.Status.Valid() {
		return ErrInvalidStatus
	}
	if s.Cost.IsNegative() {
		return ErrNegativeCost
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSurgeryNotFound
	}
	return err
}
