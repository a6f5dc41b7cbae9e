// Package appointments provides database operations for booked
// appointments, slot availability and reminder tracking.
package appointments

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotTaken           = errors.New("time slot is already booked")
	ErrInvalidDay          = errors.New("invalid appointment date")
	ErrInvalidStatus       = errors.New("invalid appointment status")
	ErrInvalidSlotRange    = errors.New("invalid working hours or slot length")
)

var holdingStatuses = []entities.AppointmentStatus{
	entities.AppointmentStatusBooked,
	entities.AppointmentStatusConfirmed,
}

// Repository handles appointment database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new appointments repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Add books an appointment if its slot is free.
func (r *Repository) Add(a *entities.Appointment) error {
	if _, err := time.Parse(entities.DayLayout, a.Day); err != nil {
		return ErrInvalidDay
	}
	if a.Status == "" {
		a.Status = entities.AppointmentStatusBooked
	}
	if !a.Status.Valid() {
		return ErrInvalidStatus
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Patient{}).Where("id = ?", a.PatientID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrPatientNotFound
		}

		if a.Status.Holds() {
			free, err := slotFree(tx, a.Day, a.Time, a.DoctorID, 0)
			if err != nil {
				return err
			}
			if !free {
				return ErrSlotTaken
			}
		}

		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return nil
	})
}

// slotFree reports whether no booked or confirmed appointment holds the slot.
// With a doctor, that doctor's appointments and unassigned ones count;
// without one any appointment at that time does. exclude skips the appointment being edited.
func slotFree(tx *gorm.DB, day string, at datatypes.Time, doctorID *uint, exclude uint) (bool, error) {
	q := tx.Model(&entities.Appointment{}).
		Where("appointment_date = ? AND appointment_time = ? AND status IN ?", day, at, holdingStatuses)
	if doctorID != nil {
		q = q.Where("(doctor_id = ? OR doctor_id IS NULL)", *doctorID)
	}
	if exclude != 0 {
		q = q.Where("id <> ?", exclude)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return count == 0, nil
}

func (r *Repository) IsSlotAvailable(day string, at datatypes.Time, doctorID *uint) (bool, error) {
	return slotFree(r.db, day, at, doctorID, 0)
}

// AvailableSlots lists free HH:MM start times between start (inclusive) and
// end (exclusive) every step.
func (r *Repository) AvailableSlots(day string, doctorID *uint, start, end datatypes.Time, step time.Duration) ([]string, error) {
	if step <= 0 || end <= start {
		return nil, ErrInvalidSlotRange
	}

	q := r.db.Model(&entities.Appointment{}).
		Where("appointment_date = ? AND status IN ?", day, holdingStatuses)
	if doctorID != nil {
		q = q.Where("(doctor_id = ? OR doctor_id IS NULL)", *doctorID)
	}
	var booked []entities.Appointment
	if err := q.Select("appointment_time").Find(&booked).Error; err != nil {
		return nil, err
	}
	taken := make(map[datatypes.Time]bool, len(booked))
	for _, a := range booked {
		taken[a.Time] = true
	}

	var slots []string
	for t := time.Duration(start); t < time.Duration(end); t += step {
		slot := datatypes.Time(t)
		if !taken[slot] {
			slots = append(slots, entities.ClockTime(slot))
		}
	}
	return slots, nil
}

func (r *Repository) GetByID(id uint) (*entities.Appointment, error) {
	var a entities.Appointment
	if err := r.db.Preload("Patient").First(&a, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

// ByDate returns a day's appointments ordered by time.
func (r *Repository) ByDate(day string) ([]entities.Appointment, error) {
	return r.ByDateRange(day, day)
}

// ByDateRange returns appointments within [from, to] ordered by date and time.
func (r *Repository) ByDateRange(from, to string) ([]entities.Appointment, error) {
	var list []entities.Appointment
	err := r.db.Preload("Patient").
		Where("appointment_date BETWEEN ? AND ?", from, to).
		Order("appointment_date ASC, appointment_time ASC").
		Find(&list).Error
	return list, err
}

func (r *Repository) ForPatient(patientID uint) ([]entities.Appointment, error) {
	var list []entities.Appointment
	err := r.db.Where("patient_id = ?", patientID).
		Order("appointment_date DESC, appointment_time DESC").
		Find(&list).Error
	return list, err
}

// Upcoming returns booked or confirmed appointments from today through
// today+days.
func (r *Repository) Upcoming(now time.Time, days int) ([]entities.Appointment, error) {
	if days <= 0 {
		days = 7
	}
	from := now.Format(entities.DayLayout)
	to := now.AddDate(0, 0, days).Format(entities.DayLayout)

	var list []entities.Appointment
	err := r.db.Preload("Patient").
		Where("appointment_date BETWEEN ? AND ? AND status IN ?", from, to, holdingStatuses).
		Order("appointment_date ASC, appointment_time ASC").
		Find(&list).Error
	return list, err
}

// Update reschedules or edits an appointment, re-checking the slot.
func (r *Repository) Update(a *entities.Appointment) error {
	if _, err := time.Parse(entities.DayLayout, a.Day); err != nil {
		return ErrInvalidDay
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing entities.Appointment
		if err := tx.First(&existing, a.ID).Error; err != nil {
			return mapNotFound(err)
		}
		if existing.Status.Holds() {
			free, err := slotFree(tx, a.Day, a.Time, a.DoctorID, a.ID)
			if err != nil {
				return err
			}
			if !free {
				return ErrSlotTaken
			}
		}

		reminderReset := existing.Day != a.Day || existing.Time != a.Time
		updates := map[string]any{
			"appointment_date": a.Day,
			"appointment_time": a.Time,
			"doctor_id":        a.DoctorID,
			"appointment_type": a.Type,
			"notes":            a.Notes,
		}
		if reminderReset {
			updates["reminder_sent"] = false
		}
		return tx.Model(&entities.Appointment{ID: a.ID}).Updates(updates).Error
	})
}

// UpdateStatus sets a new status. Re-activating a cancelled appointment
// requires its slot to be free.
func (r *Repository) UpdateStatus(id uint, status entities.AppointmentStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var a entities.Appointment
		if err := tx.First(&a, id).Error; err != nil {
			return mapNotFound(err)
		}
		if status.Holds() && !a.Status.Holds() {
			free, err := slotFree(tx, a.Day, a.Time, a.DoctorID, a.ID)
			if err != nil {
				return err
			}
			if !free {
				return ErrSlotTaken
			}
		}
		return tx.Model(&entities.Appointment{}).Where("id = ?", id).Update("status", status).Error
	})
}

func (r *Repository) Cancel(id uint) error {
	return r.UpdateStatus(id, entities.AppointmentStatusCancelled)
}

func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&entities.Appointment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *Repository) MarkReminderSent(id uint) error {
	result := r.db.Model(&entities.Appointment{}).Where("id = ?", id).Update("reminder_sent", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// DueReminders returns holding appointments without a sent reminder that
// start after now and no later than now+within.
func (r *Repository) DueReminders(now time.Time, within time.Duration) ([]entities.Appointment, error) {
	until := now.Add(within)
	var candidates []entities.Appointment
	err := r.db.Preload("Patient").
		Where("reminder_sent = ? AND status IN ?", false, holdingStatuses).
		Where("appointment_date BETWEEN ? AND ?", now.Format(entities.DayLayout), until.Format(entities.DayLayout)).
		Order("appointment_date ASC, appointment_time ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	due := candidates[:0]
	for _, a := range candidates {
		startsAt, err := a.StartsAt(now.Location())
		if err != nil {
			continue
		}
		if startsAt.After(now) && !startsAt.After(until) {
			due = append(due, a)
		}
	}
	return due, nil
}

// CountByStatus counts appointments per status within [from, to].
func (r *Repository) CountByStatus(from, to string) (map[entities.AppointmentStatus]int64, error) {
	var rows []struct {
		Status entities.AppointmentStatus
		Count  int64
	}
	err := r.db.Model(&entities.Appointment{}).
		Select("status, COUNT(*) AS count").
		Where("appointment_date BETWEEN ? AND ?", from, to).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[entities.AppointmentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAppointmentNotFound
	}
	return err
}
