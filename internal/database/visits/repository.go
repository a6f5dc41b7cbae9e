// Package visits provides database operations for patient visits and the
// daily waiting queue.
//
// Queue numbers restart at 1 every day and are assigned inside the insert
// transaction, so they are strictly increasing within a QueueDay.
package visits

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	ErrVisitNotFound     = errors.New("visit not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrPatientInactive   = errors.New("patient is deactivated")
	ErrInvalidTransition = errors.New("invalid visit status transition")
	ErrQueueEmpty        = errors.New("no patients waiting in queue")
)

var editableColumns = []string{
	"visit_type", "chief_complaint", "diagnosis", "treatment", "notes",
	"doctor_id", "examination_fee", "is_paid",
}

// Day formats t as a queue day key.
func Day(t time.Time) string {
	return t.Format(entities.DayLayout)
}

// CallResult describes what CallNext changed.
type CallResult struct {
	Finished *entities.Visit `json:"finished,omitempty"`
	Started  *entities.Visit `json:"started"`
}

// Repository handles visit and queue database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new visits repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Add records a visit and, when QueueNumber is zero, places it at the end
// of that day's queue.
func (r *Repository) Add(v *entities.Visit) error {
	if v.VisitDate.IsZero() {
		v.VisitDate = time.Now()
	}
	if v.QueueDay == "" {
		v.QueueDay = Day(v.VisitDate)
	}
	if v.Status == "" {
		v.Status = entities.VisitStatusWaiting
	}
	if v.VisitType == "" {
		v.VisitType = entities.VisitTypeExamination
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var patient entities.Patient
		if err := tx.Select("id", "is_active").First(&patient, v.PatientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPatientNotFound
			}
			return err
		}
		if !patient.IsActive {
			return ErrPatientInactive
		}

		if v.QueueNumber == 0 {
			next, err := nextQueueNumber(tx, v.QueueDay)
			if err != nil {
				return err
			}
			v.QueueNumber = next
		}

		if err := tx.Create(v).Error; err != nil {
			return fmt.Errorf("failed to create visit: %w", err)
		}
		return saveQueueCounter(tx, v.QueueDay, v.QueueNumber)
	})
}

// nextQueueNumber reads the day's counter, falling back to the highest stored
// number for days queued before the counter existed.
func nextQueueNumber(tx *gorm.DB, day string) (int, error) {
	var counter entities.QueueCounter
	err := tx.Where("day = ?", day).Limit(1).Find(&counter).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read queue counter: %w", err)
	}

	var last int
	err = tx.Model(&entities.Visit{}).
		Where("queue_day = ?", day).
		Select("COALESCE(MAX(queue_number), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read queue position: %w", err)
	}
	return max(last, counter.LastNumber) + 1, nil
}

func saveQueueCounter(tx *gorm.DB, day string, number int) error {
	err := tx.Exec(
		`INSERT INTO queue_counters (day, last_number) VALUES (?, ?)
		 ON CONFLICT(day) DO UPDATE SET last_number = MAX(last_number, excluded.last_number)`,
		day, number,
	).Error
	if err != nil {
		return fmt.Errorf("failed to update queue counter: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(id uint) (*entities.Visit, error) {
	var visit entities.Visit
	if err := r.db.Preload("Patient").First(&visit, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &visit, nil
}

// ForPatient returns a patient's visits, most recent first.
func (r *Repository) ForPatient(patientID uint) ([]entities.Visit, error) {
	var visits []entities.Visit
	err := r.db.Where("patient_id = ?", patientID).
		Order("visit_date DESC, id DESC").
		Find(&visits).Error
	return visits, err
}

// Queue returns every visit of a day in queue order.
func (r *Repository) Queue(day string) ([]entities.Visit, error) {
	var visits []entities.Visit
	err := r.db.Preload("Patient").
		Where("queue_day = ?", day).
		Order("queue_number ASC").
		Find(&visits).Error
	return visits, err
}

// ByStatus returns a day's visits in one status, in queue order.
func (r *Repository) ByStatus(day string, status entities.VisitStatus) ([]entities.Visit, error) {
	var visits []entities.Visit
	err := r.db.Preload("Patient").
		Where("queue_day = ? AND status = ?", day, status).
		Order("queue_number ASC").
		Find(&visits).Error
	return visits, err
}

// ByDateRange returns visits whose queue day falls in [from, to].
func (r *Repository) ByDateRange(from, to string) ([]entities.Visit, error) {
	var visits []entities.Visit
	err := r.db.Preload("Patient").
		Where("queue_day BETWEEN ? AND ?", from, to).
		Order("queue_day ASC, queue_number ASC").
		Find(&visits).Error
	return visits, err
}

// Current returns the visit being seen now, if any.
func (r *Repository) Current(day string) (*entities.Visit, error) {
	return r.first(r.db, day, entities.VisitStatusInProgress)
}

// NextWaiting returns the lowest-numbered waiting visit.
func (r *Repository) NextWaiting(day string) (*entities.Visit, error) {
	return r.first(r.db, day, entities.VisitStatusWaiting)
}

func (r *Repository) first(tx *gorm.DB, day string, status entities.VisitStatus) (*entities.Visit, error) {
	var visit entities.Visit
	err := tx.Preload("Patient").
		Where("queue_day = ? AND status = ?", day, status).
		Order("queue_number ASC").
		First(&visit).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &visit, nil
}

// Update writes the clinical and billing fields of a visit. Status and queue
// position are changed only through transitions.
func (r *Repository) Update(v *entities.Visit) error {
	result := r.db.Model(&entities.Visit{ID: v.ID}).Select(editableColumns).Updates(v)
	if result.Error != nil {
		return fmt.Errorf("failed to update visit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVisitNotFound
	}
	return nil
}

func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&entities.Visit{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete visit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVisitNotFound
	}
	return nil
}

func (r *Repository) Start(id uint) (*entities.Visit, error) {
	return r.Transition(id, entities.VisitStatusInProgress)
}

func (r *Repository) Complete(id uint) (*entities.Visit, error) {
	return r.Transition(id, entities.VisitStatusDone)
}

func (r *Repository) Cancel(id uint) (*entities.Visit, error) {
	return r.Transition(id, entities.VisitStatusCancelled)
}

// Transition moves a visit to a new status if the move is allowed from its
// current one.
func (r *Repository) Transition(id uint, to entities.VisitStatus) (*entities.Visit, error) {
	var visit entities.Visit
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&visit, id).Error; err != nil {
			return mapNotFound(err)
		}
		return transition(tx, &visit, to, time.Now())
	})
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

// transition updates only while the row still holds the status that was read.
func transition(tx *gorm.DB, v *entities.Visit, to entities.VisitStatus, now time.Time) error {
	from := v.Status
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	updates := map[string]any{"status": to}
	switch to {
	case entities.VisitStatusInProgress:
		updates["started_at"] = now
		v.StartedAt = &now
	case entities.VisitStatusDone, entities.VisitStatusCancelled:
		updates["finished_at"] = now
		v.FinishedAt = &now
	}

	result := tx.Model(&entities.Visit{}).
		Where("id = ? AND status = ?", v.ID, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update visit status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: visit %d is no longer %s", ErrInvalidTransition, v.ID, from)
	}
	v.Status = to
	return nil
}

// CallNext finishes whoever is in progress for day and starts the
// lowest-numbered waiting visit, in one transaction. When nobody is waiting
// nothing changes and ErrQueueEmpty is returned.
func (r *Repository) CallNext(day string) (*CallResult, error) {
	result := &CallResult{}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		next, err := r.first(tx, day, entities.VisitStatusWaiting)
		if errors.Is(err, ErrVisitNotFound) {
			return ErrQueueEmpty
		}
		if err != nil {
			return err
		}

		var current []entities.Visit
		if err := tx.Where("queue_day = ? AND status = ?", day, entities.VisitStatusInProgress).
			Order("queue_number ASC").
			Find(&current).Error; err != nil {
			return err
		}
		for i := range current {
			if err := transition(tx, &current[i], entities.VisitStatusDone, now); err != nil {
				return err
			}
			result.Finished = &current[i]
		}

		if err := transition(tx, next, entities.VisitStatusInProgress, now); err != nil {
			return err
		}
		result.Started = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountByStatus counts a day's visits per status.
func (r *Repository) CountByStatus(day string) (map[entities.VisitStatus]int64, error) {
	var rows []struct {
		Status entities.VisitStatus
		Count  int64
	}
	err := r.db.Model(&entities.Visit{}).
		Select("status, COUNT(*) AS count").
		Where("queue_day = ?", day).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[entities.VisitStatus]int64{
		entities.VisitStatusWaiting:    0,
		entities.VisitStatusInProgress: 0,
		entities.VisitStatusDone:       0,
		entities.VisitStatusCancelled:  0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountInRange counts non-cancelled visits with queue day in [from, to].
func (r *Repository) CountInRange(from, to string) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Visit{}).
		Where("queue_day BETWEEN ? AND ? AND status <> ?", from, to, entities.VisitStatusCancelled).
		Count(&count).Error
	return count, err
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrVisitNotFound
	}
	return err
}
